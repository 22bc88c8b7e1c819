package sphdoa

import (
	"errors"
	"fmt"
	"log/slog"
	"math/cmplx"

	"github.com/tphakala/simd/cpu"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/engine"
	"github.com/tphakala/go-sphdoa/internal/linalg"
	"github.com/tphakala/go-sphdoa/internal/peak"
	"github.com/tphakala/go-sphdoa/internal/sh"
)

// PowerMap is a grid-based direction-of-arrival engine. It holds the
// steering vectors for a fixed order and grid, the method's scratch buffers,
// and the most recently computed map.
//
// A PowerMap is not safe for concurrent use. Independent handles may be used
// from different goroutines.
type PowerMap struct {
	cfg     Config
	nSH     int
	kernels *engine.Kernels
	peaks   *peak.Extractor
	logger  *slog.Logger

	cx       *mat.CDense // copy of a non-CDense covariance
	pmap     []float64
	computed bool
	closed   bool
	memUsage int
}

// NewPowerMap creates an engine for the given configuration. The
// configuration is copied; the grid is shared.
func NewPowerMap(config *Config) (*PowerMap, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	cfg.Peaks = cfg.Peaks.withDefaults()
	nSH := sh.NumSH(cfg.Order)
	nDirs := cfg.Grid.Len()

	need := memoryUsage(nSH, nDirs)
	if limit := cfg.bufferLimit(); need > limit {
		return nil, fmt.Errorf("%w: order %d over %d directions needs %d bytes, limit %d",
			ErrAllocationFailure, cfg.Order, nDirs, need, limit)
	}

	p := &PowerMap{
		cfg:      cfg,
		nSH:      nSH,
		kernels:  engine.New(engine.SteeringVectors(cfg.Order, cfg.Grid.dirs)),
		peaks:    peak.New(cfg.Grid.unit, cfg.Peaks.Kappa, cfg.Peaks.Epsilon),
		logger:   cfg.logger(),
		pmap:     make([]float64, nDirs),
		memUsage: need,
	}

	p.logger.Debug("power map engine created",
		"method", cfg.Method,
		"order", cfg.Order,
		"channels", nSH,
		"directions", nDirs,
		"bytes", need)

	return p, nil
}

// memoryUsage estimates the bytes an engine allocates.
func memoryUsage(nSH, nDirs int) int {
	steering := nSH * nDirs * bytesPerFloat64 // real harmonics before the complex copy
	extractor := 2 * nDirs * bytesPerFloat64
	covariance := nSH * nSH * 2 * bytesPerFloat64
	pmap := nDirs * bytesPerFloat64
	return engine.ScratchBytes(nSH, nDirs) + steering + extractor + covariance + pmap
}

// Compute evaluates the configured method on the (N+1)²×(N+1)² covariance
// cx and returns the power map, one value per grid direction. The returned
// slice is owned by the engine and overwritten by the next call.
//
// Near-singular solves are not errors: the map is computed with diagonal
// loading and the event is logged at debug level.
func (p *PowerMap) Compute(cx mat.CMatrix) ([]float64, error) {
	if p.closed {
		return nil, ErrClosed
	}
	dense, ok := cx.(*mat.CDense)
	if cx == nil || (ok && dense == nil) {
		return nil, fmt.Errorf("%w: covariance is nil", ErrInvalidConfiguration)
	}
	if r, c := cx.Dims(); r != p.nSH || c != p.nSH {
		return nil, fmt.Errorf("%w: covariance is %dx%d, order %d needs %dx%d",
			ErrInvalidConfiguration, r, c, p.cfg.Order, p.nSH, p.nSH)
	}

	if !ok {
		if p.cx == nil {
			p.cx = mat.NewCDense(p.nSH, p.nSH, nil)
		}
		p.cx.Copy(cx)
		dense = p.cx
	}

	if dev := linalg.HermitianDeviation(dense); dev > hermitianTolerance*(1+maxAbsDiag(dense)) {
		p.logger.Debug("covariance is not Hermitian", "method", p.cfg.Method, "deviation", dev)
	}

	var err error
	switch p.cfg.Method {
	case MethodPWD:
		p.kernels.PWD(p.pmap, dense)
	case MethodMVDR:
		err = p.kernels.MVDR(p.pmap, dense, p.cfg.RegPar)
	case MethodCroPaC:
		err = p.kernels.CroPaC(p.pmap, dense, p.cfg.RegPar, p.cfg.Lambda)
	case MethodMUSIC:
		err = p.kernels.MUSIC(p.pmap, dense, p.cfg.NumSources, p.cfg.LogScale)
	case MethodMinNorm:
		err = p.kernels.MinNorm(p.pmap, dense, p.cfg.NumSources, p.cfg.LogScale)
	}

	var cond mat.Condition
	switch {
	case err == nil:
	case errors.As(err, &cond):
		p.logger.Debug("ill-conditioned solve", "method", p.cfg.Method, "condition", float64(cond))
	default:
		p.computed = false
		return nil, fmt.Errorf("%s: %w", p.cfg.Method, err)
	}

	p.computed = true
	return p.pmap, nil
}

func maxAbsDiag(m *mat.CDense) float64 {
	n, _ := m.Dims()
	var v float64
	for i := 0; i < n; i++ {
		v = max(v, cmplx.Abs(m.At(i, i)))
	}
	return v
}

// Peaks returns the grid indices of up to nSrcs distinct peaks of the last
// computed map, strongest first.
func (p *PowerMap) Peaks(nSrcs int) ([]int, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if !p.computed {
		return nil, fmt.Errorf("%w: no power map computed", ErrInvalidConfiguration)
	}
	if nSrcs < 1 {
		return nil, fmt.Errorf("%w: number of peaks must be at least 1, got %d", ErrInvalidConfiguration, nSrcs)
	}
	return p.peaks.Find(make([]int, 0, min(nSrcs, len(p.pmap))), p.pmap, nSrcs), nil
}

// PeakDirections is like Peaks but returns [azimuth, elevation] pairs in
// degrees.
func (p *PowerMap) PeakDirections(nSrcs int) ([][2]float64, error) {
	idx, err := p.Peaks(nSrcs)
	if err != nil {
		return nil, err
	}
	dirs := make([][2]float64, len(idx))
	for i, d := range idx {
		dirs[i] = p.cfg.Grid.Direction(d)
	}
	return dirs, nil
}

// Weights returns a copy of the beamforming weights of the last MVDR or
// CroPaC map as an (N+1)²×nDirs matrix, one direction per column.
func (p *PowerMap) Weights() (*mat.CDense, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if !p.cfg.Method.usesWeights() {
		return nil, fmt.Errorf("%w: %s does not produce weights", ErrInvalidConfiguration, p.cfg.Method)
	}
	wt := p.kernels.Weights()
	if wt == nil || !p.computed {
		return nil, fmt.Errorf("%w: no power map computed", ErrInvalidConfiguration)
	}
	nDirs, nSH := wt.Dims()
	w := mat.NewCDense(nSH, nDirs, nil)
	for d := 0; d < nDirs; d++ {
		for i := 0; i < nSH; i++ {
			w.Set(i, d, wt.At(d, i))
		}
	}
	return w, nil
}

// Method returns the configured method.
func (p *PowerMap) Method() Method { return p.cfg.Method }

// Order returns the expansion order.
func (p *PowerMap) Order() int { return p.cfg.Order }

// Grid returns the scanning grid.
func (p *PowerMap) Grid() *Grid { return p.cfg.Grid }

// Close releases the engine buffers. Every later call returns ErrClosed.
// Close is idempotent.
func (p *PowerMap) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.computed = false
	p.kernels = nil
	p.peaks = nil
	p.cx = nil
	p.pmap = nil
	p.logger.Debug("power map engine closed", "method", p.cfg.Method)
	return nil
}

// Info returns information about the engine.
type Info struct {
	// Method is the estimator in use.
	Method Method

	// Order is the spherical-harmonic expansion order.
	Order int

	// Channels is the number of harmonic channels, (N+1)².
	Channels int

	// Directions is the number of grid directions.
	Directions int

	// MemoryUsage is the approximate memory usage in bytes.
	MemoryUsage int64

	// SIMDType describes the SIMD instruction set used by the vector kernels.
	SIMDType string
}

// GetInfo returns information about the engine.
func (p *PowerMap) GetInfo() Info {
	return Info{
		Method:      p.cfg.Method,
		Order:       p.cfg.Order,
		Channels:    p.nSH,
		Directions:  p.cfg.Grid.Len(),
		MemoryUsage: int64(p.memUsage),
		SIMDType:    cpu.Info(),
	}
}
