package linalg

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Complex vectors recovered from the real embedding are accepted only if at
// least this squared fraction of their norm is orthogonal to the vectors
// already accepted. Each complex eigenvector v appears twice in φ(A), as v
// and i·v, and the second copy must be rejected.
const minResidualSq = 1e-3

// EigenHermitian is the eigendecomposition of a Hermitian matrix with
// eigenvalues in descending order.
//
// Eigenvalue ties keep the order in which gonum's symmetric solver reports
// them, read from the largest eigenvalue downwards.
type EigenHermitian struct {
	n       int
	values  []float64
	vectors *mat.CDense
}

// Factorize computes the eigendecomposition of the Hermitian matrix a. Only
// the upper triangle of a is read. It reports whether the factorisation
// succeeded.
func (e *EigenHermitian) Factorize(a mat.CMatrix) bool {
	n, c := a.Dims()
	if n != c {
		panic(mat.ErrSquare)
	}

	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := a.At(i, j)
			re, im := real(v), imag(v)
			if i == j {
				im = 0
			}
			sym.SetSym(i, j, re)
			sym.SetSym(i+n, j+n, re)
			sym.SetSym(i, j+n, -im)
			sym.SetSym(j, i+n, im)
		}
	}

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return false
	}
	w := es.Values(nil)
	var q mat.Dense
	es.VectorsTo(&q)

	if e.n != n || e.vectors == nil {
		e.n = n
		e.values = make([]float64, n)
		e.vectors = mat.NewCDense(n, n, nil)
	}

	accepted := 0
	v := make([]complex128, n)
	for col := 2*n - 1; col >= 0 && accepted < n; col-- {
		for i := 0; i < n; i++ {
			v[i] = complex(q.At(i, col), q.At(i+n, col))
		}
		if !orthogonalize(v, e.vectors, accepted) {
			continue
		}
		for i := 0; i < n; i++ {
			e.vectors.Set(i, accepted, v[i])
		}
		e.values[accepted] = w[col]
		accepted++
	}
	return accepted == n
}

// orthogonalize removes from v its components along the first k columns of
// basis and normalises the remainder. It reports false if too little of v
// remains.
func orthogonalize(v []complex128, basis *mat.CDense, k int) bool {
	var norm0 float64
	for _, x := range v {
		norm0 += real(x)*real(x) + imag(x)*imag(x)
	}
	if norm0 == 0 {
		return false
	}
	for j := 0; j < k; j++ {
		var dot complex128
		for i, x := range v {
			dot += cmplx.Conj(basis.At(i, j)) * x
		}
		for i := range v {
			v[i] -= dot * basis.At(i, j)
		}
	}
	var norm float64
	for _, x := range v {
		norm += real(x)*real(x) + imag(x)*imag(x)
	}
	if norm < minResidualSq*norm0 {
		return false
	}
	scale := complex(1/math.Sqrt(norm), 0)
	for i := range v {
		v[i] *= scale
	}
	return true
}

// Values returns the eigenvalues in descending order.
func (e *EigenHermitian) Values(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, e.n)
	}
	copy(dst, e.values)
	return dst
}

// Vectors returns the orthonormal eigenvectors as the columns of an n×n
// matrix, matching the order of Values. The matrix is owned by the receiver.
func (e *EigenHermitian) Vectors() *mat.CDense {
	return e.vectors
}

// Eigen computes eigenvalues and right eigenvectors of a general square
// complex matrix a. Eigenvectors are the columns of the returned matrix and
// have unit Euclidean norm.
//
// φ(a) carries the spectrum of a and of conj(a). An eigenvector [x; y] of φ(a)
// for an eigenvalue of a has the form [v; -i·v], so x + i·y = 2v, while one
// belonging to conj(a) gives x + i·y = 0. The n candidates with the largest
// |x + i·y| are kept, in the order gonum reports them.
func Eigen(a mat.CMatrix) ([]complex128, *mat.CDense, bool) {
	n, c := a.Dims()
	if n != c {
		panic(mat.ErrSquare)
	}

	var ea mat.Dense
	Embed(&ea, a)
	var eig mat.Eigen
	if !eig.Factorize(&ea, mat.EigenRight) {
		return nil, nil, false
	}
	vals := eig.Values(nil)
	var w mat.CDense
	eig.VectorsTo(&w)

	type candidate struct {
		col   int
		score float64
	}
	cands := make([]candidate, 2*n)
	for col := 0; col < 2*n; col++ {
		var s float64
		for i := 0; i < n; i++ {
			z := w.At(i, col) + 1i*w.At(i+n, col)
			s += real(z)*real(z) + imag(z)*imag(z)
		}
		cands[col] = candidate{col: col, score: s}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	cands = cands[:n]
	sort.Slice(cands, func(i, j int) bool { return cands[i].col < cands[j].col })

	values := make([]complex128, n)
	vectors := mat.NewCDense(n, n, nil)
	for k, cd := range cands {
		values[k] = vals[cd.col]
		scale := complex(1/math.Sqrt(cd.score), 0)
		if cd.score == 0 {
			scale = 0
		}
		for i := 0; i < n; i++ {
			vectors.Set(i, k, (w.At(i, cd.col)+1i*w.At(i+n, cd.col))*scale)
		}
	}
	return values, vectors, true
}

// Spectral rotation and shift applied before the standard eigensolve in
// GeneralizedEigen. They move real eigenvalues, for which the embedding
// cannot tell a from conj(a), off the real axis.
const (
	pencilRotation = 0.5403023058681398 + 0.8414709848078965i // e^{i}
	pencilShift    = 0.3141592653589793 + 0.2718281828459045i
)

// GeneralizedEigen solves a·v = λ·b·v for a regular pencil with invertible b
// by reducing it to the standard problem of b⁻¹a. It returns the eigenvalues
// and the unit-norm eigenvectors as matrix columns. A near-singular b is
// reported through the returned mat.Condition error alongside the result.
func GeneralizedEigen(a, b mat.CMatrix) ([]complex128, *mat.CDense, error) {
	n, _ := a.Dims()
	c := mat.NewCDense(n, n, nil)
	err := Solve(c, b, a)

	rot := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := c.At(i, j)
			if i == j {
				v += pencilShift
			}
			rot.Set(i, j, pencilRotation*v)
		}
	}

	mu, vectors, ok := Eigen(rot)
	if !ok {
		return nil, nil, ErrNoConvergence
	}
	for i := range mu {
		mu[i] = mu[i]/pencilRotation - pencilShift
	}
	return mu, vectors, err
}
