package engine

// Numerical floors. These keep every kernel finite on rank-deficient or
// all-zero covariance matrices.
const (
	// spectrumFloor is added to subspace projections before inversion.
	spectrumFloor = 2.23e-13

	// loadingFloorRel is the diagonal loading applied on top of regPar,
	// relative to the mean diagonal power.
	loadingFloorRel = 1e-9

	// loadingFloorAbs is the absolute diagonal loading, used when the
	// covariance has no energy at all.
	loadingFloorAbs = 2.23e-13

	// pairLoadingRel regularises the 2×2 constraint system of the
	// CroPaC beamformer, relative to its mean diagonal.
	pairLoadingRel = 1e-9

	// powerFloor is the smallest MVDR output power used as a divisor.
	powerFloor = 1e-30
)

// Memory accounting.
const (
	bytesPerComplex = 16
	bytesPerFloat   = 8
)
