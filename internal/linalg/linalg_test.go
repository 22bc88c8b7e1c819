package linalg

import (
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"
)

const (
	residualTolerance = 1e-9
	testSize          = 5
)

func randomComplex(rng *rand.Rand, r, c int) *mat.CDense {
	m := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, complex(rng.NormFloat64(), rng.NormFloat64()))
		}
	}
	return m
}

// randomHermitian returns x·xᴴ + diag, a Hermitian PSD matrix.
func randomHermitian(rng *rand.Rand, n, rank int) *mat.CDense {
	x := randomComplex(rng, n, rank)
	h := mat.NewCDense(n, n, nil)
	Product(h, blas.NoTrans, x, blas.ConjTrans, x)
	return h
}

func assertMatrixNear(t *testing.T, want, got mat.CMatrix, tol float64) {
	t.Helper()
	r, c := want.Dims()
	gr, gc := got.Dims()
	require.Equal(t, r, gr)
	require.Equal(t, c, gc)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := cmplx.Abs(want.At(i, j) - got.At(i, j))
			if !assert.LessOrEqual(t, d, tol, "element (%d,%d): want %v got %v", i, j, want.At(i, j), got.At(i, j)) {
				return
			}
		}
	}
}

func TestMulH(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	a := randomComplex(rng, 4, 3)
	b := randomComplex(rng, 4, 2)

	var got mat.CDense
	MulH(&got, a, b)

	want := mat.NewCDense(3, 2, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			var s complex128
			for k := 0; k < 4; k++ {
				s += cmplx.Conj(a.At(k, i)) * b.At(k, j)
			}
			want.Set(i, j, s)
		}
	}
	assertMatrixNear(t, want, &got, residualTolerance)
}

func TestSolve(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	a := randomComplex(rng, testSize, testSize)
	b := randomComplex(rng, testSize, 3)

	var x mat.CDense
	require.NoError(t, Solve(&x, a, b))

	var ax mat.CDense
	Mul(&ax, a, &x)
	assertMatrixNear(t, b, &ax, residualTolerance)
}

func TestSolve_SingularFallsBackToPinv(t *testing.T) {
	a := mat.NewCDense(2, 2, []complex128{1, 1i, 1, 1i})
	b := mat.NewCDense(2, 1, []complex128{1, 1})

	var x mat.CDense
	_ = Solve(&x, a, b)

	// The minimum-norm solution of [1 i; 1 i]x = [1; 1] is x = [1; -i]/2.
	assert.InDelta(t, 0.5, real(x.At(0, 0)), residualTolerance)
	assert.InDelta(t, -0.5, imag(x.At(1, 0)), residualTolerance)
	for i := 0; i < 2; i++ {
		assert.False(t, cmplx.IsNaN(x.At(i, 0)))
	}
}

func TestSolve_SingularWithMatrixView(t *testing.T) {
	a := mat.NewCDense(2, 2, []complex128{1, 1i, 1, 1i})
	// The conjugate transpose view is not a *mat.CDense: columns [1;1], [2;2].
	b := mat.NewCDense(2, 2, []complex128{1, 1, 2, 2}).H()

	x := mat.NewCDense(2, 2, nil)
	_ = Solve(x, a, b)

	for c, scale := range []float64{1, 2} {
		assert.InDelta(t, 0.5*scale, real(x.At(0, c)), residualTolerance, "column %d", c)
		assert.InDelta(t, 0, imag(x.At(0, c)), residualTolerance, "column %d", c)
		assert.InDelta(t, 0, real(x.At(1, c)), residualTolerance, "column %d", c)
		assert.InDelta(t, -0.5*scale, imag(x.At(1, c)), residualTolerance, "column %d", c)
	}
}

func TestPinv_MoorePenrose(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	// Rank-deficient 6×4 matrix.
	l := randomComplex(rng, 6, 2)
	r := randomComplex(rng, 2, 4)
	var a mat.CDense
	Mul(&a, l, r)

	var p mat.CDense
	require.True(t, Pinv(&p, &a))
	rows, cols := p.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 6, cols)

	var ap, apa mat.CDense
	Mul(&ap, &a, &p)
	Mul(&apa, &ap, &a)
	assertMatrixNear(t, &a, &apa, residualTolerance)

	var pa, pap mat.CDense
	Mul(&pa, &p, &a)
	Mul(&pap, &pa, &p)
	assertMatrixNear(t, &p, &pap, residualTolerance)
}

func TestEigenHermitian(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	a := randomHermitian(rng, testSize, testSize)

	var eh EigenHermitian
	require.True(t, eh.Factorize(a))
	vals := eh.Values(nil)
	vecs := eh.Vectors()

	for k := 1; k < testSize; k++ {
		assert.GreaterOrEqual(t, vals[k-1], vals[k], "eigenvalues must be descending")
	}

	var av mat.CDense
	Mul(&av, a, vecs)
	lv := mat.NewCDense(testSize, testSize, nil)
	for i := 0; i < testSize; i++ {
		for k := 0; k < testSize; k++ {
			lv.Set(i, k, complex(vals[k], 0)*vecs.At(i, k))
		}
	}
	assertMatrixNear(t, lv, &av, residualTolerance)

	var g mat.CDense
	MulH(&g, vecs, vecs)
	id := mat.NewCDense(testSize, testSize, nil)
	Identity(id)
	assertMatrixNear(t, id, &g, residualTolerance)
}

func TestEigenHermitian_RankDeficient(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	a := randomHermitian(rng, testSize, 2)

	var eh EigenHermitian
	require.True(t, eh.Factorize(a))
	vals := eh.Values(nil)
	assert.Greater(t, vals[1], 1e-6)
	for k := 2; k < testSize; k++ {
		assert.InDelta(t, 0, vals[k], 1e-10)
	}

	var g mat.CDense
	MulH(&g, eh.Vectors(), eh.Vectors())
	id := mat.NewCDense(testSize, testSize, nil)
	Identity(id)
	assertMatrixNear(t, id, &g, residualTolerance)
}

func TestEigen(t *testing.T) {
	a := mat.NewCDense(3, 3, []complex128{
		1 + 1i, 0.5, 2i,
		0, 2 - 0.5i, 1 - 1i,
		0, 0, -1 + 2i,
	})
	vals, vecs, ok := Eigen(a)
	require.True(t, ok)
	require.Len(t, vals, 3)

	want := map[complex128]bool{1 + 1i: false, 2 - 0.5i: false, -1 + 2i: false}
	for _, v := range vals {
		for w := range want {
			if cmplx.Abs(v-w) < residualTolerance {
				want[w] = true
			}
		}
	}
	for w, found := range want {
		assert.True(t, found, "eigenvalue %v not found in %v", w, vals)
	}

	var av mat.CDense
	Mul(&av, a, vecs)
	for k, l := range vals {
		for i := 0; i < 3; i++ {
			assert.InDelta(t, 0, cmplx.Abs(av.At(i, k)-l*vecs.At(i, k)), residualTolerance)
		}
	}
}

func TestGeneralizedEigen(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 6))
	a := randomComplex(rng, 4, 4)
	b := randomComplex(rng, 4, 4)

	vals, vecs, err := GeneralizedEigen(a, b)
	require.NoError(t, err)
	require.Len(t, vals, 4)

	var av, bv mat.CDense
	Mul(&av, a, vecs)
	Mul(&bv, b, vecs)
	for k, l := range vals {
		for i := 0; i < 4; i++ {
			assert.InDelta(t, 0, cmplx.Abs(av.At(i, k)-l*bv.At(i, k)), 1e-8, "pair %d row %d", k, i)
		}
	}
}

func TestGeneralizedEigen_RealSpectrum(t *testing.T) {
	// b⁻¹a has the real eigenvalues 1, 2 and 3.
	a := mat.NewCDense(3, 3, []complex128{
		1, 0, 0,
		0, 2, 0,
		0, 0, 3,
	})
	b := mat.NewCDense(3, 3, nil)
	Identity(b)

	vals, _, err := GeneralizedEigen(a, b)
	require.NoError(t, err)
	var sum complex128
	for _, v := range vals {
		assert.InDelta(t, 0, imag(v), residualTolerance)
		sum += v
	}
	assert.InDelta(t, 6, real(sum), residualTolerance)
}

func TestHermitianDeviation(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	a := randomHermitian(rng, 3, 3)
	assert.InDelta(t, 0, HermitianDeviation(a), residualTolerance)

	a.Set(0, 1, a.At(0, 1)+0.5)
	assert.InDelta(t, 0.5, HermitianDeviation(a), residualTolerance)
}
