package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// GrowCapacity doubles current until it reaches at least required. A zero
// or negative current starts from one.
func GrowCapacity[T constraints.Integer](current, required T) T {
	if current <= 0 {
		current = 1
	}
	for current < required {
		current *= 2
	}
	return current
}
