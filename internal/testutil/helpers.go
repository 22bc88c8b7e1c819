// Package testutil provides reusable test helpers for the direction-of-arrival
// estimators.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/go-sphdoa/internal/sh"
)

// MapTolerance is the absolute tolerance for comparing power map values.
const MapTolerance = 1e-9

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertNonNegative verifies that every element is at least -tolerance.
func AssertNonNegative(t *testing.T, s []float64, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < -tolerance {
			return assert.Fail(t, "negative value",
				"s[%d]=%g is below -%g", i, v, tolerance)
		}
	}
	return true
}

// AssertAllEqual verifies that all elements equal the first within tolerance.
func AssertAllEqual(t *testing.T, s []float64, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	for i := 1; i < len(s); i++ {
		if !assert.InDelta(t, s[0], s[i], tolerance,
			"s[%d]=%g differs from s[0]=%g", i, s[i], s[0]) {
			return false
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertDirectionsMatch verifies that every expected direction has a distinct
// estimate within tolDeg degrees. Matching is greedy in expected order.
func AssertDirectionsMatch(t *testing.T, expected, actual [][2]float64, tolDeg float64, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Len(t, actual, len(expected), msgAndArgs...) {
		return false
	}
	used := make([]bool, len(actual))
	for _, e := range expected {
		best, bestDist := -1, math.Inf(1)
		for j, a := range actual {
			if used[j] {
				continue
			}
			if d := sh.AngularDistanceDeg(e, a); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best < 0 || bestDist > tolDeg {
			return assert.Fail(t, "direction not recovered",
				"expected %v, closest estimate %.2f° away (estimates %v)", e, bestDist, actual)
		}
		used[best] = true
	}
	return true
}
