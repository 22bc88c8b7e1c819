package esprit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/sh"
)

// Shifted bases. Each recurrence relation maps a harmonic of degree n onto
// degrees n±1 with the order m shifted by -1, 0 or +1.
const (
	shiftUpPlus     = iota // (n+1, m+1), XY+
	shiftDownPlus          // (n-1, m+1), XY+
	shiftUpMinus           // (n+1, m-1), XY-
	shiftDownMinus         // (n-1, m-1), XY-
	shiftUpZero            // (n+1, m),   Z
	shiftDownZero          // (n-1, m),   Z
	numShifts
)

// shift gathers rows of the signal subspace into one shifted basis: row
// src[i] of Us contributes to row dst[i] of the order N-1 block.
type shift struct {
	src []int
	dst []int
	w   *mat.DiagDense // N²×N² recurrence coefficients, indexed by dst row
}

// recurrence holds the coefficients of the three relations, valid for
// 0 ≤ |m| ≤ n:
//
//	cosθ·Y_n^m       = a1·Y_{n+1}^m + a0·Y_{n-1}^m
//	sinθ·e^{+iφ}·Y_n^m = b0·Y_{n-1}^{m+1} - b1·Y_{n+1}^{m+1}
//	sinθ·e^{-iφ}·Y_n^m = c1·Y_{n+1}^{m-1} - c0·Y_{n-1}^{m-1}
type recurrence struct {
	a0, a1, b0, b1, c0, c1 float64
}

func coefficients(n, m int) recurrence {
	fn, fm := float64(n), float64(m)
	lo := (2*fn - 1) * (2*fn + 1)
	hi := (2*fn + 1) * (2*fn + 3)
	r := recurrence{
		a1: math.Sqrt(((fn+1)*(fn+1) - fm*fm) / hi),
		b1: math.Sqrt((fn + fm + 1) * (fn + fm + 2) / hi),
		c1: math.Sqrt((fn - fm + 1) * (fn - fm + 2) / hi),
	}
	if n > 0 {
		r.a0 = math.Sqrt(math.Max(0, (fn*fn-fm*fm)/lo))
		r.b0 = math.Sqrt(math.Max(0, (fn-fm)*(fn-fm-1)/lo))
		r.c0 = math.Sqrt(math.Max(0, (fn+fm)*(fn+fm-1)/lo))
	}
	return r
}

// buildShifts returns the six shifted bases for order N. The three n+1
// shifts cover all N² rows of degree ≤ N-1; the three n-1 shifts cover the
// (N-1)² rows whose target harmonic exists.
func buildShifts(order int) [numShifts]shift {
	rows := order * order
	var s [numShifts]shift
	w := make([][]float64, numShifts)
	for k := range s {
		w[k] = make([]float64, rows)
	}

	add := func(k, n, m, q int, coeff float64) {
		if n < 0 || m < -n || m > n {
			return
		}
		s[k].src = append(s[k].src, sh.Index(n, m))
		s[k].dst = append(s[k].dst, q)
		w[k][q] = coeff
	}

	for n := 0; n < order; n++ {
		for m := -n; m <= n; m++ {
			q := sh.Index(n, m)
			r := coefficients(n, m)
			add(shiftUpPlus, n+1, m+1, q, -r.b1)
			add(shiftDownPlus, n-1, m+1, q, r.b0)
			add(shiftUpMinus, n+1, m-1, q, r.c1)
			add(shiftDownMinus, n-1, m-1, q, -r.c0)
			add(shiftUpZero, n+1, m, q, r.a1)
			add(shiftDownZero, n-1, m, q, r.a0)
		}
	}
	for k := range s {
		s[k].w = mat.NewDiagDense(rows, w[k])
	}
	return s
}
