package sphdoa

import (
	"fmt"

	"github.com/go-audio/audio"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/sim"
)

// Common Fibonacci grid densities.
const (
	// GridCoarse gives roughly 13° spacing. Suitable for first-order input
	// and quick previews.
	GridCoarse = 240

	// GridMedium gives roughly 7° spacing, enough for orders up to 4.
	GridMedium = 812

	// GridFine gives roughly 3.5° spacing for high-order arrays.
	GridFine = 3200
)

// NewPWD creates a plane-wave decomposition engine over a Fibonacci grid
// with the given number of points.
func NewPWD(order, gridPoints int) (*PowerMap, error) {
	return newWithMethod(order, gridPoints, MethodPWD, nil)
}

// NewMVDR creates an MVDR engine with diagonal loading regPar.
func NewMVDR(order, gridPoints int, regPar float64) (*PowerMap, error) {
	return newWithMethod(order, gridPoints, MethodMVDR, func(c *Config) {
		c.RegPar = regPar
	})
}

// NewCroPaC creates a CroPaC-LCMV engine with diagonal loading regPar and
// spectral floor lambda.
func NewCroPaC(order, gridPoints int, regPar, lambda float64) (*PowerMap, error) {
	return newWithMethod(order, gridPoints, MethodCroPaC, func(c *Config) {
		c.RegPar = regPar
		c.Lambda = lambda
	})
}

// NewMUSIC creates a MUSIC engine assuming nSources sources.
func NewMUSIC(order, gridPoints, nSources int) (*PowerMap, error) {
	return newWithMethod(order, gridPoints, MethodMUSIC, func(c *Config) {
		c.NumSources = nSources
	})
}

// NewMinNorm creates a MinNorm engine assuming nSources sources.
func NewMinNorm(order, gridPoints, nSources int) (*PowerMap, error) {
	return newWithMethod(order, gridPoints, MethodMinNorm, func(c *Config) {
		c.NumSources = nSources
	})
}

func newWithMethod(order, gridPoints int, method Method, apply func(*Config)) (*PowerMap, error) {
	grid, err := FibonacciGrid(gridPoints)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(order, grid)
	cfg.Method = method
	if apply != nil {
		apply(cfg)
	}
	return NewPowerMap(cfg)
}

// LocateSources is a convenience function for one-shot localisation. It
// creates an engine from config, computes the map for cx and returns up to
// nSrcs peak directions in degrees.
func LocateSources(config *Config, cx mat.CMatrix, nSrcs int) ([][2]float64, error) {
	p, err := NewPowerMap(config)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	if _, err := p.Compute(cx); err != nil {
		return nil, err
	}
	return p.PeakDirections(nSrcs)
}

// LocateSourcesESPRIT is a convenience function for one-shot ESPRIT
// localisation from a covariance in the real harmonic basis. It extracts the
// k-dimensional signal subspace and returns k directions in degrees.
func LocateSourcesESPRIT(order int, cx mat.CMatrix, k int) ([][2]float64, error) {
	e, err := NewESPRIT(order)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	us, err := SignalSubspace(cx, k)
	if err != nil {
		return nil, err
	}
	return e.EstimateDirsReal(us, k)
}

// SampleCovariance estimates the broadband covariance of SH-domain signals
// stored with one channel per harmonic, interleaved.
func SampleCovariance(buf *audio.FloatBuffer) (*mat.CDense, error) {
	cx, err := sim.Covariance(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return cx, nil
}

// BinCovariance estimates the narrow-band covariance of SH-domain signals at
// one FFT bin, averaging Hann-windowed frames of fftSize samples with 50%
// overlap.
func BinCovariance(buf *audio.FloatBuffer, fftSize, bin int) (*mat.CDense, error) {
	cx, err := sim.BinCovariance(buf, fftSize, bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return cx, nil
}
