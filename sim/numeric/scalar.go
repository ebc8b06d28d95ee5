// Package numeric holds the guarded scalar helpers, the small vector and
// matrix algebra and the attitude quaternion operations used by the models.
//
// Quaternions are scalar-first: q[0] is the scalar part. Matrices are gonum
// dense matrices; quaternion algebra goes through mathgl.
package numeric

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	Deg2Rad = math.Pi / 180
	Rad2Deg = 180 / math.Pi

	EarthRadius = 6.37813649e6    // [m] equatorial radius
	EarthMu     = 3.986004418e14  // [m^3/s^2]
	Nano2Unit   = 1.0e-9
)

// Sqrt returns 0 for non-positive inputs.
func Sqrt(x float64) float64 {
	if x > 0 {
		return math.Sqrt(x)
	}
	return 0
}

// Atan2 returns 0 when both inputs are (nearly) zero.
func Atan2(y, x float64) float64 {
	if math.Abs(y) > 1e-14 || math.Abs(x) > 1e-14 {
		return math.Atan2(y, x)
	}
	return 0
}

// Asin clips its input to [-1, 1].
func Asin(x float64) float64 {
	return math.Asin(clipUnit(x))
}

// Acos clips its input to [-1, 1].
func Acos(x float64) float64 {
	return math.Acos(clipUnit(x))
}

func clipUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// Saturate clips x to [lo, hi].
func Saturate(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// SaturateSym clips x to [-t, t].
func SaturateSym(x, t float64) float64 {
	return Saturate(x, -t, t)
}

// Threshold applies a dead band of half-width t.
func Threshold(x, t float64) float64 {
	switch {
	case math.Abs(x) < t:
		return 0
	case x < 0:
		return x + t
	default:
		return x - t
	}
}

// Quantize rounds x to an integer number of LSB q.
func Quantize(x, q float64) float64 {
	return q * math.Floor(x/q+0.5)
}

// Sign returns -1 for negative x and 1 otherwise.
func Sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// InRange wraps value into [lo, hi].
func InRange(value, lo, hi float64) float64 {
	switch {
	case value < lo:
		return hi - math.Mod(hi-value, hi-lo)
	case hi < value:
		return lo + math.Mod(value-lo, hi-lo)
	}
	return value
}

// Angle wraps an angle into [-pi, pi].
func Angle(x float64) float64 {
	return InRange(x, -math.Pi, math.Pi)
}

// RandomNormal draws one sample of N(mean, sigma^2) from src.
func RandomNormal(src rand.Source, mean, sigma float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: sigma, Src: src}.Rand()
}
