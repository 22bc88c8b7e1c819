package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// machEps is the float64 unit round-off used for rank decisions.
const machEps = 0x1p-52

// ErrNoConvergence is returned when an iterative factorisation fails.
var ErrNoConvergence = errors.New("linalg: factorisation did not converge")

// Solve sets dst = a⁻¹·b for a square complex a, solving all columns of b in
// one factorisation. A near-singular a yields a mat.Condition error while dst
// still holds the computed solution; an exactly singular a falls back to the
// minimum-norm least-squares solution and also reports mat.Condition.
func Solve(dst *mat.CDense, a, b mat.CMatrix) error {
	n, nc := a.Dims()
	if n != nc {
		panic(mat.ErrSquare)
	}
	br, bc := b.Dims()
	if br != n {
		panic(mat.ErrShape)
	}
	if dst.IsEmpty() {
		dst.ReuseAs(n, bc)
	} else if r, c := dst.Dims(); r != n || c != bc {
		panic(mat.ErrShape)
	}

	var ea mat.Dense
	Embed(&ea, a)
	eb := mat.NewDense(2*n, bc, nil)
	embedColumns(eb, b)

	var x mat.Dense
	err := x.Solve(&ea, eb)
	var cond mat.Condition
	if errors.As(err, &cond) && math.IsInf(float64(cond), 1) {
		var pinv mat.CDense
		if !Pinv(&pinv, a) {
			dst.Zero()
			return err
		}
		bd := mat.NewCDense(n, bc, nil)
		bd.Copy(b)
		Mul(dst, &pinv, bd)
		return err
	}
	unembedColumns(dst, &x)
	return err
}

// Pinv sets dst to the Moore-Penrose pseudo-inverse of the m×n matrix a.
// Singular values below max(m,n)·σmax·eps are treated as zero. Pinv reports
// false if the singular value decomposition did not converge, in which case
// dst is zeroed.
func Pinv(dst *mat.CDense, a mat.CMatrix) bool {
	m, n := a.Dims()
	if dst.IsEmpty() {
		dst.ReuseAs(n, m)
	} else if r, c := dst.Dims(); r != n || c != m {
		panic(mat.ErrShape)
	}

	var e mat.Dense
	Embed(&e, a)

	var svd mat.SVD
	if !svd.Factorize(&e, mat.SVDThin) {
		dst.Zero()
		return false
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	k := len(s)
	tol := float64(2*max(m, n)) * s[0] * machEps
	for j := 0; j < k; j++ {
		scale := 0.0
		if s[j] > tol {
			scale = 1 / s[j]
		}
		for i := 0; i < 2*n; i++ {
			v.Set(i, j, v.At(i, j)*scale)
		}
	}

	// Only the first block column of φ(a⁺) is needed.
	var p mat.Dense
	p.Mul(&v, u.Slice(0, m, 0, k).T())
	unembedColumns(dst, &p)
	return true
}

// HermitianDeviation returns the largest absolute deviation of a from Hermitian
// symmetry, max |a_ij - conj(a_ji)|.
func HermitianDeviation(a mat.CMatrix) float64 {
	n, _ := a.Dims()
	var dev float64
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := a.At(i, j) - conj(a.At(j, i))
			dev = math.Max(dev, math.Hypot(real(d), imag(d)))
		}
	}
	return dev
}

func conj(v complex128) complex128 { return complex(real(v), -imag(v)) }
