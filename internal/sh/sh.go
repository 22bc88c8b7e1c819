// Package sh evaluates spherical harmonic bases in ACN channel order.
//
// Real harmonics are orthonormal over the unit sphere (N3D) without the
// Condon-Shortley phase. Complex harmonics carry the Condon-Shortley phase,
// so that Y_n^{-m} = (-1)^m conj(Y_n^m). Directions are given as
// [azimuth, inclination] pairs in radians, inclination measured from +z.
package sh

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// NumSH returns the number of harmonics (order+1)² up to the given order.
func NumSH(order int) int {
	return (order + 1) * (order + 1)
}

// Index returns the ACN channel index of degree n and order m.
func Index(n, m int) int {
	return n*n + n + m
}

// legendre fills q with the fully normalised associated Legendre values
// Q_n^m(x) = N_n^m P_n^m(x) (no Condon-Shortley phase) for 0 ≤ m ≤ n ≤ order.
// q is indexed as q[n*(order+1)+m].
func legendre(order int, x float64, q []float64) {
	stride := order + 1
	s := math.Sqrt(math.Max(0, 1-x*x))

	q[0] = 1 / math.Sqrt(fourPi)
	for m := 1; m <= order; m++ {
		q[m*stride+m] = q[(m-1)*stride+m-1] * s * math.Sqrt(float64(2*m+1)/float64(2*m))
	}
	for m := 0; m < order; m++ {
		q[(m+1)*stride+m] = x * math.Sqrt(float64(2*m+3)) * q[m*stride+m]
	}
	for m := 0; m <= order; m++ {
		for n := m + 2; n <= order; n++ {
			fn, fm := float64(n), float64(m)
			a := math.Sqrt((4*fn*fn - 1) / (fn*fn - fm*fm))
			b := math.Sqrt(((fn-1)*(fn-1) - fm*fm) / (4*(fn-1)*(fn-1) - 1))
			q[n*stride+m] = a * (x*q[(n-1)*stride+m] - b*q[(n-2)*stride+m])
		}
	}
}

// Real returns the nSH×nDirs matrix of real harmonics evaluated at dirs.
func Real(order int, dirs [][2]float64) *mat.Dense {
	nSH := NumSH(order)
	out := mat.NewDense(nSH, len(dirs), nil)
	q := make([]float64, (order+1)*(order+1))

	for d, dir := range dirs {
		azi, incl := dir[0], dir[1]
		legendre(order, math.Cos(incl), q)
		for n := 0; n <= order; n++ {
			out.Set(Index(n, 0), d, q[n*(order+1)])
			for m := 1; m <= n; m++ {
				v := math.Sqrt2 * q[n*(order+1)+m]
				fm := float64(m)
				out.Set(Index(n, m), d, v*math.Cos(fm*azi))
				out.Set(Index(n, -m), d, v*math.Sin(fm*azi))
			}
		}
	}
	return out
}

// Complex returns the nSH×nDirs matrix of complex harmonics evaluated at dirs.
func Complex(order int, dirs [][2]float64) *mat.CDense {
	nSH := NumSH(order)
	out := mat.NewCDense(nSH, len(dirs), nil)
	q := make([]float64, (order+1)*(order+1))

	for d, dir := range dirs {
		azi, incl := dir[0], dir[1]
		legendre(order, math.Cos(incl), q)
		for n := 0; n <= order; n++ {
			out.Set(Index(n, 0), d, complex(q[n*(order+1)], 0))
			for m := 1; m <= n; m++ {
				v := q[n*(order+1)+m]
				e := cmplx.Rect(v, float64(m)*azi)
				if m%2 == 1 {
					out.Set(Index(n, m), d, -e)
				} else {
					out.Set(Index(n, m), d, e)
				}
				out.Set(Index(n, -m), d, cmplx.Conj(e))
			}
		}
	}
	return out
}

// RealToComplex returns the unitary nSH×nSH matrix T mapping real harmonic
// coefficients onto complex ones, y_complex = T·y_real.
func RealToComplex(order int) *mat.CDense {
	nSH := NumSH(order)
	t := mat.NewCDense(nSH, nSH, nil)
	h := complex(1/math.Sqrt2, 0)

	for n := 0; n <= order; n++ {
		t.Set(Index(n, 0), Index(n, 0), 1)
		for m := 1; m <= n; m++ {
			sign := complex(1, 0)
			if m%2 == 1 {
				sign = -1
			}
			pos, neg := Index(n, m), Index(n, -m)
			t.Set(pos, pos, sign*h)
			t.Set(pos, neg, sign*h*1i)
			t.Set(neg, pos, h)
			t.Set(neg, neg, -h*1i)
		}
	}
	return t
}
