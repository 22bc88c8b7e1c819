package sh

import "math"

const (
	fourPi    = 4 * math.Pi
	degToRad  = math.Pi / 180
	radToDeg  = 180 / math.Pi
	halfPi    = math.Pi / 2
	unitCoord = 3
)

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * degToRad }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * radToDeg }

// AziElevDegToAziIncl converts [azimuth, elevation] degree pairs into the
// [azimuth, inclination] radian convention used by Real and Complex.
func AziElevDegToAziIncl(dirsDeg [][2]float64) [][2]float64 {
	out := make([][2]float64, len(dirsDeg))
	for i, d := range dirsDeg {
		out[i] = [2]float64{d[0] * degToRad, halfPi - d[1]*degToRad}
	}
	return out
}

// UnitVector returns the Cartesian unit vector of an azimuth/elevation pair
// given in radians.
func UnitVector(azi, elev float64) [unitCoord]float64 {
	ce := math.Cos(elev)
	return [unitCoord]float64{ce * math.Cos(azi), ce * math.Sin(azi), math.Sin(elev)}
}

// AngularDistanceDeg returns the great-circle angle in degrees between two
// [azimuth, elevation] directions given in degrees.
func AngularDistanceDeg(a, b [2]float64) float64 {
	el1, el2 := a[1]*degToRad, b[1]*degToRad
	c := math.Sin(el1)*math.Sin(el2) + math.Cos(el1)*math.Cos(el2)*math.Cos((a[0]-b[0])*degToRad)
	return math.Acos(math.Max(-1, math.Min(1, c))) * radToDeg
}
