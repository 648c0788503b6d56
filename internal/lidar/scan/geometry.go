package scan

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RangeEpsilon is the smallest range treated as a real return. Echoes at or
// below it are reported at range 0 with a zeroed vertex.
const RangeEpsilon = 2.220446049250313e-16

// ShotAngles returns the azimuth and zenith of beam direction d in degrees.
// Azimuth is measured clockwise from +Y towards +X and lies in [0, 360).
func ShotAngles(d r3.Vec) (azimuth, zenith float64) {
	mag := r3.Norm(d)
	if mag == 0 {
		return 0, 0
	}
	zenith = math.Acos(d.Z/mag) * 180.0 / math.Pi
	azimuth = math.Atan2(d.X, d.Y) * 180.0 / math.Pi
	if d.X < 0 {
		azimuth += 360.0
	}
	return azimuth, zenith
}

// Papp converts reflectance in dB to apparent reflectance.
func Papp(reflectanceDB float64) float64 {
	return math.Pow(10.0, reflectanceDB/10.0)
}

// Nanoseconds converts seconds to integer nanoseconds, rounding half up.
// Negative times clamp to 0.
func Nanoseconds(seconds float64) uint64 {
	ns := seconds*1e9 + 0.5
	if ns <= 0 {
		return 0
	}
	return uint64(ns)
}

// FloorRange applies the range floor to an echo's range and vertex.
func FloorRange(rng float64, vertex r3.Vec) (float64, r3.Vec) {
	if rng <= RangeEpsilon {
		return 0, r3.Vec{}
	}
	return rng, vertex
}
