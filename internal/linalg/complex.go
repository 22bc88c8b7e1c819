// Package linalg provides the complex linear algebra needed by the
// direction-of-arrival estimators on top of gonum.
//
// gonum's LAPACK layer is real-only, so factorisations of an m×n complex
// matrix A = Ar + i·Ai operate on its real embedding
//
//	φ(A) = | Ar  -Ai |
//	       | Ai   Ar |
//
// which preserves products, conjugate transposes and Moore-Penrose inverses:
// φ(AB) = φ(A)φ(B), φ(Aᴴ) = φ(A)ᵀ and φ(A⁺) = φ(A)⁺. Products are computed
// directly in complex arithmetic through gonum's cblas128.
package linalg

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// View returns the r×c top-left view of m sharing its storage.
func View(m *mat.CDense, r, c int) *mat.CDense {
	return m.Slice(0, r, 0, c).(*mat.CDense)
}

// Product sets dst = op(a)·op(b), where op is selected by tA and tB
// (blas.NoTrans, blas.Trans or blas.ConjTrans). An empty dst is resized;
// otherwise its shape must match the product. dst must not alias a or b.
func Product(dst *mat.CDense, tA blas.Transpose, a *mat.CDense, tB blas.Transpose, b *mat.CDense) {
	ar, ac := a.Dims()
	if tA != blas.NoTrans {
		ar, ac = ac, ar
	}
	br, bc := b.Dims()
	if tB != blas.NoTrans {
		br, bc = bc, br
	}
	if ac != br {
		panic(mat.ErrShape)
	}
	if dst.IsEmpty() {
		dst.ReuseAs(ar, bc)
	} else if r, c := dst.Dims(); r != ar || c != bc {
		panic(mat.ErrShape)
	}
	cblas128.Gemm(tA, tB, 1, a.RawCMatrix(), b.RawCMatrix(), 0, dst.RawCMatrix())
}

// Mul sets dst = a·b.
func Mul(dst, a, b *mat.CDense) {
	Product(dst, blas.NoTrans, a, blas.NoTrans, b)
}

// MulH sets dst = aᴴ·b.
func MulH(dst, a, b *mat.CDense) {
	Product(dst, blas.ConjTrans, a, blas.NoTrans, b)
}

// Embed writes the 2r×2c real embedding of the r×c matrix a into dst,
// resizing an empty dst.
func Embed(dst *mat.Dense, a mat.CMatrix) {
	r, c := a.Dims()
	if dst.IsEmpty() {
		dst.ReuseAs(2*r, 2*c)
	} else if dr, dc := dst.Dims(); dr != 2*r || dc != 2*c {
		panic(mat.ErrShape)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			re, im := real(v), imag(v)
			dst.Set(i, j, re)
			dst.Set(i, j+c, -im)
			dst.Set(i+r, j, im)
			dst.Set(i+r, j+c, re)
		}
	}
}

// embedColumns writes the 2r×c stacked real/imaginary parts of a into dst,
// the first block column of φ(a).
func embedColumns(dst *mat.Dense, a mat.CMatrix) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			dst.Set(i, j, real(v))
			dst.Set(i+r, j, imag(v))
		}
	}
}

// unembedColumns reads a complex r×c matrix back from the first block
// column of a real embedding, where r is half the row count of e.
func unembedColumns(dst *mat.CDense, e mat.Matrix) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, complex(e.At(i, j), e.At(i+r, j)))
		}
	}
}

// Identity sets the square matrix m to the identity.
func Identity(m *mat.CDense) {
	m.Zero()
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, i, 1)
	}
}

// Diag copies the diagonal of the square matrix m into dst.
func Diag(dst []complex128, m mat.CMatrix) []complex128 {
	r, _ := m.Dims()
	if dst == nil {
		dst = make([]complex128, r)
	}
	for i := 0; i < r; i++ {
		dst[i] = m.At(i, i)
	}
	return dst
}
