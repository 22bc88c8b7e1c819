package simdops

import (
	"testing"

	"github.com/tphakala/simd/f64"
)

// BenchmarkDirectF64DotProduct measures direct SIMD call overhead.
func BenchmarkDirectF64DotProduct(b *testing.B) {
	a := make([]float64, 64)
	c := make([]float64, 64)
	for i := range a {
		a[i] = float64(i) * 0.01
		c[i] = float64(i) * 0.02
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = f64.DotProductUnsafe(a, c)
	}
}

// BenchmarkIndirectF64DotProduct measures indirect call through Ops struct.
func BenchmarkIndirectF64DotProduct(b *testing.B) {
	o := Default()
	a := make([]float64, 64)
	c := make([]float64, 64)
	for i := range a {
		a[i] = float64(i) * 0.01
		c[i] = float64(i) * 0.02
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = o.DotProductUnsafe(a, c)
	}
}

// BenchmarkDotH measures a Hermitian inner product over 25 channels (order 4).
func BenchmarkDotH(b *testing.B) {
	const n = 25
	o := Default()
	aRe, aIm := make([]float64, n), make([]float64, n)
	bRe, bIm := make([]float64, n), make([]float64, n)
	for i := range n {
		aRe[i], aIm[i] = float64(i)*0.01, float64(n-i)*0.01
		bRe[i], bIm[i] = float64(i)*0.02, -float64(i)*0.03
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = o.DotH(aRe, aIm, bRe, bIm)
	}
}
