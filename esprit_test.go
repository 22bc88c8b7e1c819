package sphdoa

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/engine"
	"github.com/tphakala/go-sphdoa/internal/esprit"
	"github.com/tphakala/go-sphdoa/internal/linalg"
	"github.com/tphakala/go-sphdoa/internal/sh"
	"github.com/tphakala/go-sphdoa/internal/sim"
	"github.com/tphakala/go-sphdoa/internal/testutil"
)

const espritTolDeg = 1.0

var espritSources = []sim.Source{
	{Azimuth: 30, Elevation: 20, Power: 1},
	{Azimuth: 150, Elevation: -35, Power: 0.8},
	{Azimuth: -80, Elevation: 50, Power: 0.6},
}

func TestESPRIT_RoundTrip(t *testing.T) {
	cx := sim.ModelCovariance(testOrder, espritSources, testNoise)

	e, err := NewESPRIT(testOrder)
	require.NoError(t, err)
	defer e.Close()

	us, err := SignalSubspace(cx, len(espritSources))
	require.NoError(t, err)

	got, err := e.EstimateDirsReal(us, len(espritSources))
	require.NoError(t, err)
	testutil.AssertDirectionsMatch(t, sourceDirs(espritSources), got, espritTolDeg)

	// The same subspace in the complex basis.
	got, err = e.EstimateDirs(esprit.ToComplexBasis(testOrder, us), len(espritSources))
	require.NoError(t, err)
	testutil.AssertDirectionsMatch(t, sourceDirs(espritSources), got, espritTolDeg)
}

func TestESPRIT_UsesLeadingColumns(t *testing.T) {
	cx := sim.ModelCovariance(testOrder, espritSources[:2], testNoise)

	e, err := NewESPRIT(testOrder)
	require.NoError(t, err)

	// Extra columns beyond k are ignored.
	us, err := SignalSubspace(cx, 5)
	require.NoError(t, err)
	got, err := e.EstimateDirsReal(us, 2)
	require.NoError(t, err)
	testutil.AssertDirectionsMatch(t, sourceDirs(espritSources[:2]), got, espritTolDeg)
}

func TestESPRIT_OutputFollowsColumns(t *testing.T) {
	e, err := NewESPRIT(testOrder)
	require.NoError(t, err)

	dirs := sourceDirs(espritSources)
	for _, perm := range [][]int{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}} {
		want := make([][2]float64, len(perm))
		for i, p := range perm {
			want[i] = dirs[p]
		}
		// Real steering vectors span the signal subspace, one source per column.
		us := engine.SteeringVectors(testOrder, want)

		got, err := e.EstimateDirsReal(us, len(want))
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.LessOrEqual(t, sh.AngularDistanceDeg(want[i], got[i]), espritTolDeg,
				"perm %v column %d: want %v, got %v", perm, i, want[i], got[i])
		}
	}
}

func TestESPRIT_InvalidArguments(t *testing.T) {
	_, err := NewESPRIT(0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	e, err := NewESPRIT(2)
	require.NoError(t, err)
	assert.Equal(t, 4, e.MaxSources())
	assert.Equal(t, 2, e.Order())

	us := mat.NewCDense(9, 5, nil)
	tests := []struct {
		name string
		us   mat.CMatrix
		k    int
	}{
		{"k above N²", us, 5},
		{"k zero", us, 0},
		{"wrong row count", mat.NewCDense(16, 2, nil), 2},
		{"too few columns", mat.NewCDense(9, 1, nil), 2},
		{"nil", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EstimateDirs(tt.us, tt.k)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			_, err = e.EstimateDirsReal(tt.us, tt.k)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestESPRIT_Close(t *testing.T) {
	e, err := NewESPRIT(2)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.EstimateDirs(mat.NewCDense(9, 1, nil), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSignalSubspace(t *testing.T) {
	cx := sim.ModelCovariance(2, espritSources[:1], 0)
	us, err := SignalSubspace(cx, 1)
	require.NoError(t, err)

	r, c := us.Dims()
	assert.Equal(t, 9, r)
	assert.Equal(t, 1, c)

	// The leading eigenvector satisfies Cx·u = λ·u with λ = uᴴ·Cx·u.
	var cu mat.CDense
	linalg.Mul(&cu, cx, us)
	var norm float64
	var lambda complex128
	for i := 0; i < r; i++ {
		v := us.At(i, 0)
		norm += real(v)*real(v) + imag(v)*imag(v)
		lambda += cmplx.Conj(v) * cu.At(i, 0)
	}
	assert.InDelta(t, 1, norm, testutil.MapTolerance)
	assert.InDelta(t, 0, imag(lambda), testutil.MapTolerance)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 0, cmplx.Abs(cu.At(i, 0)-lambda*us.At(i, 0)), 1e-9, "row %d", i)
	}

	_, err = SignalSubspace(cx, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = SignalSubspace(cx, 10)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = SignalSubspace(mat.NewCDense(3, 4, nil), 1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = SignalSubspace(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
