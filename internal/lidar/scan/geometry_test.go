package scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestShotAngles(t *testing.T) {
	tests := []struct {
		name    string
		dir     r3.Vec
		azimuth float64
		zenith  float64
	}{
		{"north horizontal", r3.Vec{X: 0, Y: 1, Z: 0}, 0, 90},
		{"east horizontal", r3.Vec{X: 1, Y: 0, Z: 0}, 90, 90},
		{"south horizontal", r3.Vec{X: 0, Y: -1, Z: 0}, 180, 90},
		{"west horizontal", r3.Vec{X: -1, Y: 0, Z: 0}, 270, 90},
		{"straight up", r3.Vec{X: 0, Y: 0, Z: 1}, 0, 0},
		{"straight down", r3.Vec{X: 0, Y: 0, Z: -1}, 0, 180},
		{"unnormalised up-east", r3.Vec{X: 2, Y: 0, Z: 2}, 90, 45},
		{"north-west", r3.Vec{X: -1, Y: 1, Z: 0}, 315, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			az, zen := ShotAngles(tt.dir)
			assert.InDelta(t, tt.azimuth, az, 1e-9)
			assert.InDelta(t, tt.zenith, zen, 1e-9)
		})
	}
}

func TestShotAngles_ZeroVector(t *testing.T) {
	az, zen := ShotAngles(r3.Vec{})
	assert.Equal(t, 0.0, az)
	assert.Equal(t, 0.0, zen)
}

func TestShotAngles_AzimuthRange(t *testing.T) {
	for i := 0; i < 360; i++ {
		a := float64(i) * math.Pi / 180
		az, _ := ShotAngles(r3.Vec{X: math.Sin(a), Y: math.Cos(a), Z: 0.3})
		assert.GreaterOrEqual(t, az, 0.0)
		assert.Less(t, az, 360.0)
	}
}

func TestPapp(t *testing.T) {
	assert.InDelta(t, 1.0, Papp(0), 1e-12)
	assert.InDelta(t, 10.0, Papp(10), 1e-12)
	assert.InDelta(t, 0.1, Papp(-10), 1e-12)
	assert.InDelta(t, 100.0, Papp(20), 1e-9)
}

func TestNanoseconds(t *testing.T) {
	assert.Equal(t, uint64(0), Nanoseconds(0))
	assert.Equal(t, uint64(1_000_000_000), Nanoseconds(1))
	assert.Equal(t, uint64(2), Nanoseconds(1.6e-9))
	assert.Equal(t, uint64(1), Nanoseconds(1.4e-9))
	assert.Equal(t, uint64(0), Nanoseconds(-5))
}

func TestFloorRange(t *testing.T) {
	v := r3.Vec{X: 1, Y: 2, Z: 3}

	r, got := FloorRange(0, v)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, r3.Vec{}, got)

	r, got = FloorRange(RangeEpsilon, v)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, r3.Vec{}, got)

	r, got = FloorRange(-1, v)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, r3.Vec{}, got)

	r, got = FloorRange(12.5, v)
	assert.Equal(t, 12.5, r)
	assert.Equal(t, v, got)
}
