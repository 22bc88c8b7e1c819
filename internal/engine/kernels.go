// Package engine implements the grid-based power-map kernels: plane-wave
// decomposition (PWD), MVDR and CroPaC-LCMV beamforming, and the MUSIC and
// MinNorm subspace pseudo-spectra.
//
// All kernels share one quadratic-form evaluator, Quadratic, which computes
// Re(wᴴ·Cx·w) for a set of weight vectors. Weight sets are stored with one
// direction per row so the evaluator can run over contiguous memory.
package engine

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa/internal/linalg"
	"github.com/tphakala/go-sphdoa/internal/sh"
	"github.com/tphakala/go-sphdoa/internal/simdops"
)

// Kernels evaluates power maps over a fixed set of steering vectors.
//
// A Kernels value owns its scratch buffers and is not safe for concurrent use.
type Kernels struct {
	nSH   int
	nDirs int
	ops   *simdops.Ops

	y  *mat.CDense // nSH×nDirs steering vectors
	yt *mat.CDense // nDirs×nSH, row d holds y_d

	loaded *mat.CDense // diagonally loaded covariance
	rhs    *mat.CDense // nSH×2nDirs: [Y, Y⊙diag(Cx)]
	x      *mat.CDense // loaded⁻¹·rhs
	wt     *mat.CDense // adapted weights, one direction per row
	wo     *mat.CDense // CroPaC constrained weights
	zt     *mat.CDense // (Cx·W)ᵀ
	proj   *mat.CDense // noise-subspace projections

	diag     []complex128
	row      []complex128
	aRe, aIm []float64
	bRe, bIm []float64
	pRe, pIm []float64
	pow, tmp []float64

	eig          linalg.EigenHermitian
	weightsValid bool
}

// SteeringVectors returns the nSH×nDirs complex steering matrix for the
// given [azimuth, elevation] directions in degrees. The vectors are the real
// spherical harmonics with a zero imaginary part.
func SteeringVectors(order int, dirsDeg [][2]float64) *mat.CDense {
	yr := sh.Real(order, sh.AziElevDegToAziIncl(dirsDeg))
	r, c := yr.Dims()
	y := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			y.Set(i, j, complex(yr.At(i, j), 0))
		}
	}
	return y
}

// ScratchBytes estimates the memory New allocates for nSH channels and
// nDirs directions.
func ScratchBytes(nSH, nDirs int) int {
	complexes := 2*nSH*nDirs + // y, yt
		nSH*nSH + // loaded
		2*2*nSH*nDirs + // rhs, x
		4*nSH*nDirs + // wt, wo, zt, proj
		2*nSH // diag, row
	floats := 6*nSH + 4*nDirs
	return complexes*bytesPerComplex + floats*bytesPerFloat
}

// New returns kernels for the nSH×nDirs steering matrix y. y is copied.
func New(y *mat.CDense) *Kernels {
	nSH, nDirs := y.Dims()
	k := &Kernels{
		nSH:    nSH,
		nDirs:  nDirs,
		ops:    simdops.Default(),
		y:      mat.NewCDense(nSH, nDirs, nil),
		yt:     mat.NewCDense(nDirs, nSH, nil),
		loaded: mat.NewCDense(nSH, nSH, nil),
		rhs:    mat.NewCDense(nSH, 2*nDirs, nil),
		x:      mat.NewCDense(nSH, 2*nDirs, nil),
		wt:     mat.NewCDense(nDirs, nSH, nil),
		wo:     mat.NewCDense(nDirs, nSH, nil),
		zt:     mat.NewCDense(nDirs, nSH, nil),
		proj:   mat.NewCDense(nSH, nDirs, nil),
		diag:   make([]complex128, nSH),
		row:    make([]complex128, nSH),
		aRe:    make([]float64, nSH),
		aIm:    make([]float64, nSH),
		bRe:    make([]float64, nSH),
		bIm:    make([]float64, nSH),
		pRe:    make([]float64, nDirs),
		pIm:    make([]float64, nDirs),
		pow:    make([]float64, nDirs),
		tmp:    make([]float64, nDirs),
	}
	k.y.Copy(y)
	for i := 0; i < nSH; i++ {
		for d := 0; d < nDirs; d++ {
			v := y.At(i, d)
			k.yt.Set(d, i, v)
			k.rhs.Set(i, d, v)
		}
	}
	return k
}

// NumSH returns the number of spherical harmonic channels.
func (k *Kernels) NumSH() int { return k.nSH }

// NumDirs returns the number of steering directions.
func (k *Kernels) NumDirs() int { return k.nDirs }

// Weights returns the adapted weights of the last MVDR or CroPaC call, one
// direction per row, or nil if neither has run. The matrix is owned by k.
func (k *Kernels) Weights() *mat.CDense {
	if !k.weightsValid {
		return nil
	}
	return k.wt
}

// rowOf returns row i of m as a slice into its backing storage.
func rowOf(m *mat.CDense, i int) []complex128 {
	raw := m.RawCMatrix()
	return raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
}

// Quadratic sets pmap[d] = Re(w_dᴴ·cx·w_d), where w_d is row d of wt.
func (k *Kernels) Quadratic(pmap []float64, cx, wt *mat.CDense) {
	linalg.Product(k.zt, blas.NoTrans, wt, blas.Trans, cx)
	for d := 0; d < k.nDirs; d++ {
		simdops.Split(k.aRe, k.aIm, rowOf(wt, d))
		simdops.Split(k.bRe, k.bIm, rowOf(k.zt, d))
		pmap[d] = k.ops.DotProductUnsafe(k.aRe, k.bRe) + k.ops.DotProductUnsafe(k.aIm, k.bIm)
	}
}

// PWD computes the plane-wave decomposition map, the steered response power
// of cx towards every direction.
func (k *Kernels) PWD(pmap []float64, cx *mat.CDense) {
	k.Quadratic(pmap, cx, k.yt)
}

// load sets k.loaded = cx + δ·I with δ = regPar·mean(diag(cx)) plus a small
// floor, and records diag(cx).
func (k *Kernels) load(cx *mat.CDense, regPar float64) {
	var tr float64
	for i := 0; i < k.nSH; i++ {
		k.diag[i] = cx.At(i, i)
		tr += real(k.diag[i])
	}
	mean := tr / float64(k.nSH)
	delta := complex(regPar*mean+loadingFloorRel*math.Abs(mean)+loadingFloorAbs, 0)

	k.loaded.Copy(cx)
	for i := 0; i < k.nSH; i++ {
		k.loaded.Set(i, i, k.loaded.At(i, i)+delta)
	}
}

// dotCols returns aᴴb for column ca of a and column cb of b.
func dotCols(a *mat.CDense, ca int, b *mat.CDense, cb int) complex128 {
	r, _ := a.Dims()
	var s complex128
	for i := 0; i < r; i++ {
		av := a.At(i, ca)
		s += complex(real(av), -imag(av)) * b.At(i, cb)
	}
	return s
}

// mvdrWeights solves loaded·X = rhs for the first cols columns and stores
// the distortionless weights x_d / (y_dᴴ·x_d) in k.wt.
func (k *Kernels) mvdrWeights(cols int) error {
	err := linalg.Solve(linalg.View(k.x, k.nSH, cols), k.loaded, linalg.View(k.rhs, k.nSH, cols))
	for d := 0; d < k.nDirs; d++ {
		denom := real(dotCols(k.y, d, k.x, d))
		if denom < powerFloor {
			denom = powerFloor
		}
		scale := complex(1/denom, 0)
		w := rowOf(k.wt, d)
		for i := range w {
			w[i] = k.x.At(i, d) * scale
		}
	}
	k.weightsValid = true
	return err
}

// MVDR computes the minimum-variance distortionless-response map. Loading
// applies to the weight solve only; output power is measured on cx. The
// returned error is a mat.Condition warning from the linear solve and does
// not invalidate pmap.
func (k *Kernels) MVDR(pmap []float64, cx *mat.CDense, regPar float64) error {
	k.load(cx, regPar)
	err := k.mvdrWeights(k.nDirs)
	k.Quadratic(pmap, cx, k.wt)
	return err
}

// CroPaC computes the cross-pattern coherence LCMV map. Each direction's
// MVDR weights are scaled by a spectral gain derived from the coherence
// between the matched beam and a beam constrained to null the
// diagonal-weighted steering vector. lambda bounds the gain from below;
// lambda = 1 reproduces MVDR.
func (k *Kernels) CroPaC(pmap []float64, cx *mat.CDense, regPar, lambda float64) error {
	k.load(cx, regPar)
	for d := 0; d < k.nDirs; d++ {
		k.ops.MulComplex(k.row, rowOf(k.yt, d), k.diag)
		for i, v := range k.row {
			k.rhs.Set(i, k.nDirs+d, v)
		}
	}
	err := k.mvdrWeights(2 * k.nDirs)

	for d := 0; d < k.nDirs; d++ {
		c2 := k.nDirs + d
		j00 := dotCols(k.y, d, k.x, d)
		j01 := dotCols(k.y, d, k.x, c2)
		j10 := dotCols(k.rhs, c2, k.x, d)
		j11 := dotCols(k.rhs, c2, k.x, c2)

		delta := complex(pairLoadingRel*(cmplxAbs(j00)+cmplxAbs(j11))/2+loadingFloorAbs, 0)
		j00 += delta
		j11 += delta
		det := j00*j11 - j01*j10
		if det == 0 {
			det = complex(loadingFloorAbs, 0)
		}
		v0, v1 := j11/det, -j10/det

		w := rowOf(k.wo, d)
		for i := range w {
			w[i] = k.x.At(i, d)*v0 + k.x.At(i, c2)*v1
		}
	}

	k.Quadratic(pmap, cx, k.wt)

	// Cross-spectrum between the matched beam y_d and wo: y_dᴴ·Cx·wo.
	linalg.Product(k.zt, blas.NoTrans, k.wo, blas.Trans, cx)
	for d := 0; d < k.nDirs; d++ {
		simdops.Split(k.aRe, k.aIm, rowOf(k.yt, d))
		simdops.Split(k.bRe, k.bIm, rowOf(k.zt, d))
		cross := cmplxAbs(k.ops.DotH(k.aRe, k.aIm, k.bRe, k.bIm))

		p := pmap[d]
		g := 1.0
		if p > powerFloor {
			g = math.Max(lambda, math.Sqrt(math.Min(cross, p)/p))
		}
		w := rowOf(k.wt, d)
		for i := range w {
			w[i] *= complex(g, 0)
		}
	}

	k.Quadratic(pmap, cx, k.wt)
	return err
}

func cmplxAbs(v complex128) float64 { return math.Hypot(real(v), imag(v)) }
