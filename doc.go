// Package sphdoa provides sound-source direction-of-arrival estimation in
// the spherical-harmonic domain, in pure Go.
//
// Input is the spatial covariance of spherical-harmonic (Ambisonic) signals
// of order N, an (N+1)²×(N+1)² Hermitian matrix in the real orthonormal
// (N3D) basis with ACN channel ordering. Grid-based estimators scan a fixed
// set of directions and return a power map; the peaks of the map are the
// estimated source directions. ESPRIT estimates directions in closed form
// from a signal subspace.
//
// # Features
//
//   - Plane-wave decomposition (steered response power)
//   - MVDR and CroPaC-LCMV adaptive beamforming maps
//   - MUSIC and MinNorm subspace pseudo-spectra
//   - Multi-peak extraction with von Mises suppression windows
//   - Spherical-harmonic ESPRIT without a scanning grid
//   - Fibonacci and equiangular scanning grids
//   - SIMD-accelerated vector kernels via github.com/tphakala/simd
//   - Pure Go linear algebra on gonum with no CGO dependencies
//
// # Quick Start
//
// For one-shot localisation:
//
//	grid, _ := sphdoa.FibonacciGrid(sphdoa.GridMedium)
//	cfg := sphdoa.DefaultConfig(4, grid)
//	cfg.Method = sphdoa.MethodMVDR
//	dirs, err := sphdoa.LocateSources(cfg, cx, 2)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For frame-by-frame processing with a reusable engine:
//
//	pm, err := sphdoa.NewPowerMap(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pm.Close()
//
//	for cx := range covariances {
//	    pmap, err := pm.Compute(cx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    peaks, _ := pm.PeakDirections(2)
//	    render(pmap, peaks)
//	}
//
// For ESPRIT:
//
//	est, _ := sphdoa.NewESPRIT(4)
//	us, _ := sphdoa.SignalSubspace(cx, 3)
//	dirs, err := est.EstimateDirsReal(us, 3)
//
// # Methods
//
//   - [MethodPWD]: y_dᴴ·Cx·y_d. Always non-negative for a positive
//     semi-definite covariance.
//   - [MethodMVDR]: distortionless weights Cx⁻¹y_d/(y_dᴴCx⁻¹y_d) with
//     diagonal loading [Config.RegPar].
//   - [MethodCroPaC]: MVDR weights scaled by a cross-pattern coherence gain
//     floored at [Config.Lambda].
//   - [MethodMUSIC]: 1/‖Vnᴴy_d‖² over the noise subspace.
//   - [MethodMinNorm]: the minimum-norm variant using one noise eigenvector.
//
// # Conventions
//
// Directions are [azimuth, elevation] pairs in degrees. Azimuth is measured
// counter-clockwise from the x axis and elevation upwards from the
// horizontal plane. ESPRIT's EstimateDirs expects the complex harmonic basis
// with the Condon-Shortley phase; EstimateDirsReal accepts the real basis.
//
// # Thread Safety
//
// Engines are NOT safe for concurrent use. Use one engine per goroutine;
// [ComputeFrames] does this for batches of covariance matrices. A [Grid] is
// immutable and may be shared.
package sphdoa
