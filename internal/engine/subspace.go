package engine

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/linalg"
	"github.com/tphakala/go-sphdoa/internal/simdops"
)

// SignalDim returns the number of eigenvectors treated as signal subspace,
// nSources clamped to [0, nSH/2].
func (k *Kernels) SignalDim(nSources int) int {
	return max(0, min(nSources, k.nSH/2))
}

// projectionPower sets k.pow[d] = Σ_j |v_jᴴ·y_d|² over columns [c0, c1) of
// vecs.
func (k *Kernels) projectionPower(vecs *mat.CDense, c0, c1 int) {
	vn, _ := vecs.Slice(0, k.nSH, c0, c1).(*mat.CDense)
	p := linalg.View(k.proj, c1-c0, k.nDirs)
	linalg.MulH(p, vn, k.y)

	clear(k.pow)
	for j := 0; j < c1-c0; j++ {
		simdops.Split(k.pRe, k.pIm, rowOf(p, j))
		vecmath.Power(k.tmp, k.pRe, k.pIm)
		vecmath.AddBlockInPlace(k.pow, k.tmp)
	}
}

// MUSIC computes the MUSIC pseudo-spectrum 1/‖Vnᴴ·y_d‖², where Vn holds the
// eigenvectors of cx beyond the nSources largest eigenvalues. With logScale
// the natural logarithm of the spectrum is stored.
func (k *Kernels) MUSIC(pmap []float64, cx *mat.CDense, nSources int, logScale bool) error {
	if !k.eig.Factorize(cx) {
		return linalg.ErrNoConvergence
	}
	k.projectionPower(k.eig.Vectors(), k.SignalDim(nSources), k.nSH)
	for d := range pmap {
		pmap[d] = spectrum(k.pow[d], logScale)
	}
	return nil
}

// MinNorm computes the minimum-norm pseudo-spectrum from the single noise
// eigenvector adjacent to the signal subspace, v = column SignalDim(nSources)
// of the descending eigenvector matrix. v is normalised by its self inner
// product, u = v/(vᴴv), and the spectrum is 1/|uᴴ·y_d|².
func (k *Kernels) MinNorm(pmap []float64, cx *mat.CDense, nSources int, logScale bool) error {
	if !k.eig.Factorize(cx) {
		return linalg.ErrNoConvergence
	}
	vecs := k.eig.Vectors()
	c := k.SignalDim(nSources)

	var self float64
	for i := 0; i < k.nSH; i++ {
		v := vecs.At(i, c)
		self += real(v)*real(v) + imag(v)*imag(v)
	}
	k.projectionPower(vecs, c, c+1)
	k.ops.Scale(k.pow, k.pow, 1/(self*self))
	for d := range pmap {
		pmap[d] = spectrum(k.pow[d], logScale)
	}
	return nil
}

// EigenValues returns the eigenvalues of the last MUSIC or MinNorm call in
// descending order.
func (k *Kernels) EigenValues(dst []float64) []float64 {
	return k.eig.Values(dst)
}

func spectrum(power float64, logScale bool) float64 {
	v := 1 / (power + spectrumFloor)
	if logScale {
		return math.Log(v)
	}
	return v
}
