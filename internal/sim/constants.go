package sim

import "math"

// minFFTSize is the shortest analysis frame accepted by BinCovariance.
const minFFTSize = 4

func sqrt(v float64) float64 { return math.Sqrt(math.Max(0, v)) }
