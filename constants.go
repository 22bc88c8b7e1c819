package sphdoa

// Order limits
const (
	minOrder = 1
	maxOrder = 30 // (N+1)² = 961 harmonic channels
)

// Method defaults
const (
	defaultRegPar     = 1e-3 // MVDR/CroPaC diagonal loading, relative to mean(diag Cx)
	defaultLambda     = 0.2  // CroPaC spectral floor
	defaultNumSources = 1
)

// Buffer and memory constants
const (
	defaultMaxBufferBytes = 1 << 30 // Engine scratch budget when Config.MaxBufferBytes is 0
	bytesPerFloat64       = 8
)

// Grid construction
const (
	fullCircleDeg = 360.0
	halfCircleDeg = 180.0
	poleDeg       = 90.0
	gridSlackDeg  = 1e-9 // Tolerance when stepping a range up to its end point
)

// hermitianTolerance is the relative deviation from Hermitian symmetry above
// which Compute logs a warning. The kernels still run on the input as given.
const hermitianTolerance = 1e-9
