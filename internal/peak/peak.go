// Package peak extracts multiple source directions from a power map by
// repeated argmax and directional suppression.
package peak

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// Default suppression parameters.
const (
	DefaultKappa   = 50.0
	DefaultEpsilon = 1e-5
)

// Extractor finds up to n peaks in power maps defined over a fixed set of
// unit direction vectors. It owns a working copy of the map and is not safe
// for concurrent use.
type Extractor struct {
	dirs    [][3]float64
	kappa   float64
	epsilon float64
	scale   float64

	work []float64
	mask []float64
}

// New returns an extractor for the given unit vectors. kappa is the von
// Mises concentration of the suppression window and epsilon the floor added
// before the window is inverted.
func New(dirs [][3]float64, kappa, epsilon float64) *Extractor {
	return &Extractor{
		dirs:    dirs,
		kappa:   kappa,
		epsilon: epsilon,
		// κ/(4π·sinh κ)·e^{κc} = κ/(2π(1-e^{-2κ}))·e^{κ(c-1)}
		scale: kappa / (2 * math.Pi * -math.Expm1(-2*kappa)),
		work:  make([]float64, len(dirs)),
		mask:  make([]float64, len(dirs)),
	}
}

// Find appends to dst the indices of up to n peaks of pmap, in the order
// found. Each peak is the global maximum of the working map, first index on
// ties. After each peak except the last, the working map is multiplied by
// 1/(v+ε), where v is a von Mises window centred on the peak and normalised
// to unit integral over the sphere. Indices already returned are excluded
// from later searches, so the result holds min(n, len(pmap)) distinct
// indices.
func (e *Extractor) Find(dst []int, pmap []float64, n int) []int {
	n = min(n, len(e.dirs))
	copy(e.work, pmap)
	for i := 0; i < n; i++ {
		idx := floats.MaxIdx(e.work)
		dst = append(dst, idx)
		if i == n-1 {
			break
		}
		e.suppress(idx)
		e.work[idx] = math.Inf(-1)
	}
	return dst
}

// suppress multiplies the working map by the inverted window around peak.
func (e *Extractor) suppress(peak int) {
	p := e.dirs[peak]
	for j, d := range e.dirs {
		c := p[0]*d[0] + p[1]*d[1] + p[2]*d[2]
		e.mask[j] = 1 / (e.scale*math.Exp(e.kappa*(c-1)) + e.epsilon)
	}
	vecmath.MulBlockInPlace(e.work, e.mask)
}
