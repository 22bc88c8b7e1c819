// Package esprit implements the spherical-harmonic ESPRIT direction
// estimator.
//
// Spherical harmonics satisfy three-term recurrences under multiplication by
// the Cartesian components of the direction:
//
//	x + iy = sinθ·e^{+iφ},  x - iy = sinθ·e^{-iφ},  z = cosθ
//
// Applied to the order N-1 block of a signal subspace Us, the recurrences
// yield Λ = U0·T⁻¹·Φ·T for each component, where U0 holds the first N² rows
// of Us and Φ is diagonal with that component per source. Ψ = U0⁺·Λ shares
// the eigenvectors T⁻¹ across the three components, so one eigenproblem
// recovers all source directions.
//
// The subspace must be expressed in the complex harmonic basis with the
// Condon-Shortley phase, as produced by sh.Complex.
package esprit

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/linalg"
	"github.com/tphakala/go-sphdoa/internal/sh"
)

// pencilShift is added to Ψ_Z before the generalised eigenproblem on
// (Ψ_XY+, Ψ_Z). It keeps Ψ_Z invertible for sources on the horizon and
// separates sources mirrored through the horizontal plane.
const pencilShift = 0.7071067811865476 + 1.0471975511965976i

// Estimator holds the recurrence tables for one order and per-call scratch
// buffers. It is not safe for concurrent use.
type Estimator struct {
	order int
	nSH   int
	rows  int // N², the row count of the order N-1 block

	shifts [numShifts]shift

	// Scratch sized for the widest subspace, N² columns.
	pinv   *mat.CDense    // K×N²
	lambda [3]*mat.CDense // N²×K: XY+, XY-, Z
	psi    [3]*mat.CDense // K×K
	pencil *mat.CDense    // K×K
	psiV   *mat.CDense    // K×K
	phi    *mat.CDense    // K×K
	diag   [3][]complex128
}

// New precomputes the recurrence tables and scratch buffers for the given
// order, which must be at least 1.
func New(order int) *Estimator {
	rows := order * order
	e := &Estimator{
		order:  order,
		nSH:    sh.NumSH(order),
		rows:   rows,
		shifts: buildShifts(order),
		pinv:   mat.NewCDense(rows, rows, nil),
		pencil: mat.NewCDense(rows, rows, nil),
		psiV:   mat.NewCDense(rows, rows, nil),
		phi:    mat.NewCDense(rows, rows, nil),
	}
	for c := range e.lambda {
		e.lambda[c] = mat.NewCDense(rows, rows, nil)
		e.psi[c] = mat.NewCDense(rows, rows, nil)
		e.diag[c] = make([]complex128, rows)
	}
	return e
}

// Order returns the expansion order.
func (e *Estimator) Order() int { return e.order }

// MaxSources returns the widest subspace EstimateDirs accepts, N².
func (e *Estimator) MaxSources() int { return e.rows }

// ScratchBytes estimates the memory New allocates for the given order.
func ScratchBytes(order int) int {
	const bytesPerComplex, bytesPerFloat, bytesPerInt = 16, 8, 8
	rows := order * order
	return (10*rows*rows+3*rows)*bytesPerComplex + // scratch
		numShifts*rows*bytesPerFloat + // weights
		2*numShifts*rows*bytesPerInt // index tables
}

// gather sets dst = Σ_k W_k·S_k(us) over the given shifts, where S_k gathers
// rows of us into the order N-1 block.
func (e *Estimator) gather(dst *mat.CDense, us *mat.CDense, k1, k2 int) {
	dst.Zero()
	_, cols := dst.Dims()
	for _, k := range [2]int{k1, k2} {
		s := e.shifts[k]
		for i, src := range s.src {
			q := s.dst[i]
			w := complex(s.w.At(q, q), 0)
			for c := 0; c < cols; c++ {
				dst.Set(q, c, dst.At(q, c)+w*us.At(src, c))
			}
		}
	}
}

// EstimateDirs returns one [azimuth, elevation] pair in radians per column of
// the nSH×K signal subspace us, 1 ≤ K ≤ N², in column order: entry i is the
// estimate that best matches column i. The returned error reports
// ill-conditioned intermediate solves; the directions are still valid best
// estimates. The caller validates the shape of us.
func (e *Estimator) EstimateDirs(us *mat.CDense) ([][2]float64, error) {
	_, k := us.Dims()

	u0 := linalg.View(us, e.rows, k)
	pinv := linalg.View(e.pinv, k, e.rows)
	if !linalg.Pinv(pinv, u0) {
		return nil, linalg.ErrNoConvergence
	}

	pairs := [3][2]int{
		{shiftUpPlus, shiftDownPlus},
		{shiftUpMinus, shiftDownMinus},
		{shiftUpZero, shiftDownZero},
	}
	var psi [3]*mat.CDense
	for c, p := range pairs {
		lambda := linalg.View(e.lambda[c], e.rows, k)
		e.gather(lambda, us, p[0], p[1])
		psi[c] = linalg.View(e.psi[c], k, k)
		linalg.Mul(psi[c], pinv, lambda)
	}

	pencil := linalg.View(e.pencil, k, k)
	pencil.Copy(psi[2])
	for i := 0; i < k; i++ {
		pencil.Set(i, i, pencil.At(i, i)+pencilShift)
	}
	_, v, warn := linalg.GeneralizedEigen(psi[0], pencil)
	if v == nil {
		return nil, warn
	}

	psiV := linalg.View(e.psiV, k, k)
	phi := linalg.View(e.phi, k, k)
	for c := range psi {
		linalg.Mul(psiV, psi[c], v)
		if err := linalg.Solve(phi, v, psiV); err != nil && warn == nil {
			warn = err
		}
		linalg.Diag(e.diag[c][:k], phi)
	}

	dirs := make([][2]float64, k)
	for i := 0; i < k; i++ {
		plus, minus, z := e.diag[0][i], e.diag[1][i], e.diag[2][i]
		x := real((plus + minus) / 2)
		y := real((plus - minus) / 2i)
		dirs[i] = [2]float64{
			math.Atan2(y, x),
			clampElevation(math.Atan2(real(z), math.Hypot(x, y))),
		}
	}
	return e.alignToColumns(dirs, us), warn
}

// alignToColumns orders dirs so that entry i is the direction whose complex
// steering vector has the largest |u_iᴴ·y| with column i of us among the
// directions not yet assigned. Columns are visited in order; ties keep the
// lower index.
func (e *Estimator) alignToColumns(dirs [][2]float64, us *mat.CDense) [][2]float64 {
	aziIncl := make([][2]float64, len(dirs))
	for i, d := range dirs {
		aziIncl[i] = [2]float64{d[0], math.Pi/2 - d[1]}
	}
	var g mat.CDense
	linalg.MulH(&g, us, sh.Complex(e.order, aziIncl))

	out := make([][2]float64, len(dirs))
	used := make([]bool, len(dirs))
	for i := range out {
		best, bestMag := -1, -1.0
		for j := range dirs {
			if used[j] {
				continue
			}
			if m := cmplx.Abs(g.At(i, j)); m > bestMag {
				best, bestMag = j, m
			}
		}
		used[best] = true
		out[i] = dirs[best]
	}
	return out
}

// ToComplexBasis converts a subspace expressed in real harmonics into the
// complex basis EstimateDirs expects.
func ToComplexBasis(order int, us *mat.CDense) *mat.CDense {
	var out mat.CDense
	linalg.Mul(&out, sh.RealToComplex(order), us)
	return &out
}

func clampElevation(el float64) float64 {
	return math.Max(-math.Pi/2, math.Min(math.Pi/2, el))
}
