package sphdoa

import (
	"fmt"
	"math"

	"github.com/tphakala/go-sphdoa/internal/sh"
)

// Grid is an immutable scanning grid of [azimuth, elevation] directions in
// degrees together with their Cartesian unit vectors. A Grid may be shared
// by any number of engines.
type Grid struct {
	dirs [][2]float64
	unit [][3]float64
}

// NewGrid returns a grid over the given [azimuth, elevation] pairs in
// degrees. Elevation is measured from the horizontal plane and must lie in
// [-90, 90]. The input is copied.
func NewGrid(dirsDeg [][2]float64) (*Grid, error) {
	if len(dirsDeg) == 0 {
		return nil, fmt.Errorf("%w: grid must contain at least one direction", ErrInvalidConfiguration)
	}

	g := &Grid{
		dirs: make([][2]float64, len(dirsDeg)),
		unit: make([][3]float64, len(dirsDeg)),
	}
	for i, d := range dirsDeg {
		if !isFinite(d[0]) || !isFinite(d[1]) {
			return nil, fmt.Errorf("%w: direction %d is not finite", ErrInvalidConfiguration, i)
		}
		if math.Abs(d[1]) > poleDeg {
			return nil, fmt.Errorf("%w: direction %d elevation %v outside [-90, 90]", ErrInvalidConfiguration, i, d[1])
		}
		g.dirs[i] = d
		g.unit[i] = sh.UnitVector(sh.DegToRad(d[0]), sh.DegToRad(d[1]))
	}
	return g, nil
}

// FibonacciGrid returns n nearly uniformly spaced directions on a golden
// angle spiral running from the north pole to the south pole.
func FibonacciGrid(n int) (*Grid, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: fibonacci grid needs at least one point, got %d", ErrInvalidConfiguration, n)
	}

	goldenAngle := halfCircleDeg * (3 - math.Sqrt(5))
	dirs := make([][2]float64, n)
	for i := range dirs {
		z := 1 - (2*float64(i)+1)/float64(n)
		dirs[i] = [2]float64{
			wrapAzimuth(float64(i) * goldenAngle),
			sh.RadToDeg(math.Asin(z)),
		}
	}
	return NewGrid(dirs)
}

// EquiangularGrid returns a grid with azimuths every azStep degrees in
// [-180, 180) and elevations every elStep degrees from -90 to 90. Each pole
// that falls on the elevation lattice appears once.
func EquiangularGrid(azStepDeg, elStepDeg float64) (*Grid, error) {
	if !(azStepDeg > 0 && azStepDeg <= fullCircleDeg) || !(elStepDeg > 0 && elStepDeg <= halfCircleDeg) {
		return nil, fmt.Errorf("%w: grid steps must be in (0, 360] azimuth and (0, 180] elevation, got %v, %v",
			ErrInvalidConfiguration, azStepDeg, elStepDeg)
	}

	var dirs [][2]float64
	for el := -poleDeg; el <= poleDeg+gridSlackDeg; el += elStepDeg {
		el = math.Min(el, poleDeg)
		if math.Abs(math.Abs(el)-poleDeg) < gridSlackDeg {
			dirs = append(dirs, [2]float64{0, math.Copysign(poleDeg, el)})
			continue
		}
		for az := -halfCircleDeg; az < halfCircleDeg-gridSlackDeg; az += azStepDeg {
			dirs = append(dirs, [2]float64{az, el})
		}
	}
	return NewGrid(dirs)
}

// Len returns the number of directions.
func (g *Grid) Len() int { return len(g.dirs) }

// Direction returns direction i as [azimuth, elevation] in degrees.
func (g *Grid) Direction(i int) [2]float64 { return g.dirs[i] }

// UnitVector returns the Cartesian unit vector of direction i.
func (g *Grid) UnitVector(i int) [3]float64 { return g.unit[i] }

// Directions returns a copy of all directions.
func (g *Grid) Directions() [][2]float64 {
	return append([][2]float64(nil), g.dirs...)
}

// wrapAzimuth maps an angle in degrees into [-180, 180).
func wrapAzimuth(deg float64) float64 {
	deg = math.Mod(deg+halfCircleDeg, fullCircleDeg)
	if deg < 0 {
		deg += fullCircleDeg
	}
	return deg - halfCircleDeg
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
