// Package simdops provides SIMD-accelerated vector primitives for the
// direction-of-arrival kernels.
//
// Complex vectors are handled either natively through the c128 kernels or as
// split real/imaginary float64 slices so that the f64 dot products can be
// used for Hermitian inner products.
//
// With Profile-Guided Optimization (Go 1.22+), function pointer calls in hot paths
// can be devirtualized and inlined, achieving near-zero overhead.
package simdops

import (
	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
)

// Ops provides SIMD-accelerated float64 and complex128 operations.
// Function pointers allow swapping implementations in tests and benchmarks.
type Ops struct {
	// DotProductUnsafe computes the dot product without bounds checking.
	// Use only when slices are guaranteed to have equal length.
	DotProductUnsafe func(a, b []float64) float64

	// Scale multiplies each element by scalar s: dst[i] = a[i] * s
	Scale func(dst, a []float64, s float64)

	// MulComplex multiplies elementwise: dst[i] = a[i] * b[i]
	MulComplex func(dst, a, b []complex128)
}

var ops = Ops{
	DotProductUnsafe: f64.DotProductUnsafe,
	Scale:            f64.Scale,
	MulComplex:       c128.Mul,
}

// Default returns the SIMD operations.
func Default() *Ops {
	return &ops
}

// Split copies the real and imaginary parts of src into re and im.
func Split(re, im []float64, src []complex128) {
	for i, v := range src {
		re[i] = real(v)
		im[i] = imag(v)
	}
}

// DotH returns the Hermitian inner product aᴴb of two split complex vectors.
// All four slices must have equal length.
func (o *Ops) DotH(aRe, aIm, bRe, bIm []float64) complex128 {
	re := o.DotProductUnsafe(aRe, bRe) + o.DotProductUnsafe(aIm, bIm)
	im := o.DotProductUnsafe(aRe, bIm) - o.DotProductUnsafe(aIm, bRe)
	return complex(re, im)
}

// NormSq returns the squared Euclidean norm of a split complex vector.
func (o *Ops) NormSq(re, im []float64) float64 {
	return o.DotProductUnsafe(re, re) + o.DotProductUnsafe(im, im)
}
