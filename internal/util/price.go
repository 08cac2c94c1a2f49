// Package util provides common utility functions for price calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.05, 1.27 becomes 1.25 and 1.28 becomes 1.30.
// A zero tick, NaN, or infinite input is returned unchanged.
func RoundToTick(x, tick float64) float64 {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	tick = math.Abs(tick)
	return math.Round(x/tick) * tick
}
