package sphdoa

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/esprit"
	"github.com/tphakala/go-sphdoa/internal/linalg"
	"github.com/tphakala/go-sphdoa/internal/sh"
)

// ESPRIT estimates source directions in closed form from a signal subspace,
// without a scanning grid. It depends only on the expansion order.
//
// An ESPRIT handle is not safe for concurrent use.
type ESPRIT struct {
	order  int
	nSH    int
	est    *esprit.Estimator
	us     *mat.CDense // nSH×N² copy of the caller's subspace
	logger *slog.Logger
	closed bool
}

// NewESPRIT precomputes the recurrence tables for the given order.
func NewESPRIT(order int) (*ESPRIT, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	nSH := sh.NumSH(order)
	rows := order * order
	need := esprit.ScratchBytes(order) + nSH*rows*2*bytesPerFloat64
	if need > defaultMaxBufferBytes {
		return nil, fmt.Errorf("%w: ESPRIT order %d needs %d bytes, limit %d",
			ErrAllocationFailure, order, need, defaultMaxBufferBytes)
	}

	return &ESPRIT{
		order:  order,
		nSH:    nSH,
		est:    esprit.New(order),
		us:     mat.NewCDense(nSH, rows, nil),
		logger: discardLogger,
	}, nil
}

// SetLogger routes numerical-degeneracy events to l. Nil discards them.
func (e *ESPRIT) SetLogger(l *slog.Logger) {
	if l == nil {
		l = discardLogger
	}
	e.logger = l
}

// Order returns the expansion order.
func (e *ESPRIT) Order() int { return e.order }

// MaxSources returns the largest number of sources EstimateDirs resolves,
// N².
func (e *ESPRIT) MaxSources() int { return e.order * e.order }

// EstimateDirs returns one [azimuth, elevation] pair in degrees for each of
// the first k columns of the signal subspace us. us must have (N+1)² rows
// expressed in the complex harmonic basis with the Condon-Shortley phase,
// and 1 ≤ k ≤ N².
//
// Directions follow the column order of us: entry i is the estimate whose
// steering vector best matches column i, each estimate used once. When the
// columns are steering vectors of the sources this is the source order; for
// an eigenvector basis it is the order of the best-aligned eigenvectors.
func (e *ESPRIT) EstimateDirs(us mat.CMatrix, k int) ([][2]float64, error) {
	view, err := e.subspace(us, k)
	if err != nil {
		return nil, err
	}
	return e.estimate(view)
}

// EstimateDirsReal is like EstimateDirs for a subspace expressed in the real
// orthonormal harmonic basis, such as the eigenvectors of a covariance of
// real SH signals.
func (e *ESPRIT) EstimateDirsReal(us mat.CMatrix, k int) ([][2]float64, error) {
	view, err := e.subspace(us, k)
	if err != nil {
		return nil, err
	}
	return e.estimate(esprit.ToComplexBasis(e.order, view))
}

// subspace validates us and copies its first k columns into scratch.
func (e *ESPRIT) subspace(us mat.CMatrix, k int) (*mat.CDense, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if d, ok := us.(*mat.CDense); us == nil || (ok && d == nil) {
		return nil, fmt.Errorf("%w: subspace is nil", ErrInvalidConfiguration)
	}
	if k < 1 || k > e.MaxSources() {
		return nil, fmt.Errorf("%w: number of sources must be 1-%d for order %d, got %d",
			ErrInvalidConfiguration, e.MaxSources(), e.order, k)
	}
	r, c := us.Dims()
	if r != e.nSH || c < k {
		return nil, fmt.Errorf("%w: subspace is %dx%d, need %d rows and at least %d columns",
			ErrInvalidConfiguration, r, c, e.nSH, k)
	}

	view := linalg.View(e.us, e.nSH, k)
	for i := 0; i < e.nSH; i++ {
		for j := 0; j < k; j++ {
			view.Set(i, j, us.At(i, j))
		}
	}
	return view, nil
}

func (e *ESPRIT) estimate(us *mat.CDense) ([][2]float64, error) {
	dirs, err := e.est.EstimateDirs(us)
	var cond mat.Condition
	switch {
	case err == nil:
	case errors.As(err, &cond):
		e.logger.Debug("ill-conditioned ESPRIT solve", "order", e.order, "condition", float64(cond))
	default:
		return nil, fmt.Errorf("esprit: %w", err)
	}

	for i := range dirs {
		dirs[i] = [2]float64{sh.RadToDeg(dirs[i][0]), sh.RadToDeg(dirs[i][1])}
	}
	return dirs, nil
}

// Close releases the estimator tables. Every later call returns ErrClosed.
func (e *ESPRIT) Close() error {
	e.closed = true
	e.est = nil
	e.us = nil
	return nil
}

// SignalSubspace returns the eigenvectors of the k largest eigenvalues of
// the Hermitian covariance cx as the columns of an n×k matrix.
func SignalSubspace(cx mat.CMatrix, k int) (*mat.CDense, error) {
	if d, ok := cx.(*mat.CDense); cx == nil || (ok && d == nil) {
		return nil, fmt.Errorf("%w: covariance is nil", ErrInvalidConfiguration)
	}
	n, c := cx.Dims()
	if n != c || n == 0 {
		return nil, fmt.Errorf("%w: covariance must be square and non-empty, got %dx%d", ErrInvalidConfiguration, n, c)
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: subspace dimension must be 1-%d, got %d", ErrInvalidConfiguration, n, k)
	}

	var eh linalg.EigenHermitian
	if !eh.Factorize(cx) {
		return nil, fmt.Errorf("signal subspace: %w", linalg.ErrNoConvergence)
	}
	us := mat.NewCDense(n, k, nil)
	us.Copy(eh.Vectors())
	return us, nil
}
