package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scanfile/internal/lidar/decode"
)

func shot(t float64) decode.Shot {
	return decode.Shot{TimeSorg: t, Direction: r3.Vec{X: 0, Y: 1, Z: 0}, Origin: r3.Vec{X: 1, Y: 2, Z: 3}}
}

func echo(idx uint16, rng float64) decode.Echo {
	return decode.Echo{
		ReturnIndex: idx,
		Time:        1.0,
		Amplitude:   12,
		Deviation:   2,
		Range:       rng,
		Reflectance: 10,
		Vertex:      r3.Vec{X: 1, Y: 2 + rng, Z: 3},
	}
}

// feed delivers shots with the given echo counts.
func feed(t *testing.T, x *Extractor, echoCounts ...int) {
	t.Helper()
	for _, n := range echoCounts {
		x.OnShot(shot(float64(x.PulsesReadFile())))
		for i := 0; i < n; i++ {
			require.NoError(t, x.OnEcho(echo(uint16(i+1), 5)))
		}
	}
}

// checkLinkage verifies every pulse's point range against pts.
func checkLinkage(t *testing.T, pulses []Pulse, pts []Point) {
	t.Helper()
	next := uint32(0)
	for i, p := range pulses {
		if p.PointCount == 0 {
			assert.Equal(t, uint32(0), p.PointStartIdx, "pulse %d", i)
			continue
		}
		assert.Equal(t, next, p.PointStartIdx, "pulse %d start", i)
		assert.LessOrEqual(t, int(p.PointStartIdx)+int(p.PointCount), len(pts), "pulse %d range", i)
		for j := uint32(0); j < uint32(p.PointCount); j++ {
			assert.Equal(t, uint64(j+1), pts[p.PointStartIdx+j].ReturnID, "pulse %d point %d", i, j)
		}
		next += uint32(p.PointCount)
	}
	assert.Equal(t, int(next), len(pts))
}

func TestExtractor_PulseFields(t *testing.T) {
	x := NewExtractor(0, 0)
	x.OnLineStart(decode.LineUp)
	x.OnShot(decode.Shot{TimeSorg: 1.25, Direction: r3.Vec{X: -1, Y: 0, Z: 0}, Origin: r3.Vec{X: 4, Y: 5, Z: 6}})

	require.Equal(t, 1, x.PulsesBuffered())
	p := x.Pulses()[0]
	assert.Equal(t, uint64(0), p.PulseID)
	assert.Equal(t, uint64(1_250_000_000), p.GPSTime)
	assert.InDelta(t, 270.0, p.Azimuth, 1e-4)
	assert.InDelta(t, 90.0, p.Zenith, 1e-4)
	assert.Equal(t, uint32(1), p.Scanline)
	assert.Equal(t, uint32(1), p.ScanlineIdx)
	assert.Equal(t, 1.0, p.XIdx)
	assert.Equal(t, 1.0, p.YIdx)
	assert.Equal(t, 4.0, p.XOrigin)
	assert.Equal(t, 5.0, p.YOrigin)
	assert.Equal(t, float32(6), p.ZOrigin)
	assert.Equal(t, uint32(0), p.PointStartIdx)
	assert.Equal(t, uint16(0), p.PointCount)
}

func TestExtractor_PointFields(t *testing.T) {
	x := NewExtractor(0, 0)
	x.OnShot(shot(0))
	require.NoError(t, x.OnEcho(decode.Echo{
		ReturnIndex: 2,
		Time:        0.5,
		Amplitude:   7.5,
		Deviation:   3,
		Range:       10,
		Reflectance: -10,
		Vertex:      r3.Vec{X: 1, Y: 12, Z: 3},
	}))

	require.Equal(t, 1, x.PointsBuffered())
	pt := x.Points()[0]
	assert.Equal(t, uint64(2), pt.ReturnID)
	assert.Equal(t, uint64(500_000_000), pt.GPSTime)
	assert.Equal(t, float32(7.5), pt.AmplitudeReturn)
	assert.Equal(t, float32(3), pt.WidthReturn)
	assert.Equal(t, ClassUnclassified, pt.Classification)
	assert.Equal(t, 10.0, pt.Range)
	assert.InDelta(t, 0.1, pt.Papp, 1e-9)
	assert.Equal(t, 1.0, pt.X)
	assert.Equal(t, 12.0, pt.Y)
	assert.Equal(t, float32(3), pt.Z)
}

func TestExtractor_RangeFloor(t *testing.T) {
	x := NewExtractor(0, 0)
	x.OnShot(shot(0))
	require.NoError(t, x.OnEcho(echo(1, 0)))

	pt := x.Points()[0]
	assert.Equal(t, 0.0, pt.Range)
	assert.Equal(t, 0.0, pt.X)
	assert.Equal(t, 0.0, pt.Y)
	assert.Equal(t, float32(0), pt.Z)
}

func TestExtractor_PointBeforePulse(t *testing.T) {
	x := NewExtractor(0, 0)
	assert.ErrorIs(t, x.OnEcho(echo(1, 5)), ErrPointBeforePulse)
	assert.Equal(t, 0, x.PointsBuffered())
}

func TestExtractor_ScanlineCounters(t *testing.T) {
	x := NewExtractor(0, 0)
	feed(t, x, 0, 0)
	x.OnLineStart(decode.LineUp)
	feed(t, x, 0, 0, 0)
	x.OnLineStart(decode.LineDown)
	feed(t, x, 0)

	var lines, idx []uint32
	for _, p := range x.Pulses() {
		lines = append(lines, p.Scanline)
		idx = append(idx, p.ScanlineIdx)
	}
	assert.Equal(t, []uint32{0, 0, 1, 1, 1, 2}, lines)
	assert.Equal(t, []uint32{1, 2, 1, 2, 3, 1}, idx)
}

func TestExtractor_Linkage(t *testing.T) {
	x := NewExtractor(4, 3)
	counts := []int{2, 0, 3, 1, 0, 0, 4}
	feed(t, x, counts...)

	assert.Equal(t, len(counts), x.PulsesBuffered())
	assert.Equal(t, 10, x.PointsBuffered())
	checkLinkage(t, x.Pulses(), x.Points())
	for i, p := range x.Pulses() {
		assert.Equal(t, uint64(i), p.PulseID)
		assert.Equal(t, uint16(counts[i]), p.PointCount)
	}
}

func TestExtractor_IgnoreCountsShots(t *testing.T) {
	x := NewExtractor(0, 0)
	x.SetPulsesToIgnore(3)
	feed(t, x, 2, 1, 0, 2, 1)

	assert.Equal(t, 5, x.PulsesReadFile())
	assert.Equal(t, 2, x.PulsesBuffered())
	assert.Equal(t, 3, x.PulsesConsumed())
	assert.Equal(t, 0, x.PulsesToIgnore())
	// Echoes of ignored shots are dropped.
	assert.Equal(t, 3, x.PointsBuffered())

	pulses := x.Pulses()
	assert.Equal(t, uint64(3), pulses[0].PulseID)
	assert.Equal(t, uint64(4), pulses[1].PulseID)
	checkLinkage(t, pulses, x.Points())
}

func TestExtractor_SetPulsesToIgnoreNegative(t *testing.T) {
	x := NewExtractor(0, 0)
	x.SetPulsesToIgnore(-4)
	assert.Equal(t, 0, x.PulsesToIgnore())
}

func TestExtractor_RemoveLowerPulses(t *testing.T) {
	tests := []struct {
		name          string
		counts        []int
		remove        int
		wantPulses    int
		wantPoints    int
		wantDiscarded int
		wantFirstID   uint64
	}{
		{"none", []int{1, 2}, 0, 2, 3, 0, 0},
		{"leading pulses with points", []int{2, 1, 3}, 2, 1, 3, 3, 2},
		{"next pulse has no points", []int{2, 1, 0, 3}, 2, 2, 3, 3, 2},
		{"removed pulses have no points", []int{0, 0, 2}, 2, 1, 2, 0, 2},
		{"everything", []int{1, 1}, 2, 0, 0, 2, 0},
		{"beyond buffered", []int{1, 1}, 7, 0, 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewExtractor(0, 0)
			feed(t, x, tt.counts...)

			discarded := x.RemoveLowerPulses(tt.remove)
			assert.Equal(t, tt.wantDiscarded, discarded)
			assert.Equal(t, tt.wantPulses, x.PulsesBuffered())
			assert.Equal(t, tt.wantPoints, x.PointsBuffered())
			checkLinkage(t, x.Pulses(), x.Points())
			if tt.wantPulses > 0 {
				assert.Equal(t, tt.wantFirstID, x.Pulses()[0].PulseID)
			}
			assert.Equal(t, len(tt.counts), x.PulsesReadFile())
		})
	}
}

func TestExtractor_RemoveLowerPulses_EmptyBuffer(t *testing.T) {
	x := NewExtractor(0, 0)
	assert.Equal(t, 0, x.RemoveLowerPulses(5))
}

func TestExtractor_Take(t *testing.T) {
	x := NewExtractor(3, 2)
	feed(t, x, 1, 0, 2, 3, 0, 1)

	pulses, points := x.Take(3)
	require.Equal(t, 3, pulses.Len())
	require.Equal(t, 3, points.Len())
	checkLinkage(t, pulses.Records(), points.Records())

	assert.Equal(t, 3, x.PulsesBuffered())
	assert.Equal(t, 4, x.PointsBuffered())
	checkLinkage(t, x.Pulses(), x.Points())
	assert.Equal(t, uint64(3), x.Pulses()[0].PulseID)
	assert.Equal(t, uint32(0), x.FirstPointIdx())
	assert.Equal(t, 3, x.PulsesConsumed())

	// Later events keep buffering against the renumbered front.
	feed(t, x, 2)
	checkLinkage(t, x.Pulses(), x.Points())

	// Taken records are unaffected by further buffering.
	assert.Equal(t, uint64(2), pulses.Records()[2].PulseID)
	assert.Equal(t, uint32(1), pulses.Records()[2].PointStartIdx)
}

func TestExtractor_TakeClamped(t *testing.T) {
	x := NewExtractor(0, 0)
	feed(t, x, 1, 1)

	pulses, points := x.Take(10)
	assert.Equal(t, 2, pulses.Len())
	assert.Equal(t, 2, points.Len())
	assert.Equal(t, 0, x.PulsesBuffered())
	assert.Equal(t, 0, x.PointsBuffered())
	assert.Equal(t, 2, x.PulsesConsumed())
}

func TestExtractor_EchoAfterCurrentPulseTaken(t *testing.T) {
	x := NewExtractor(0, 0)
	feed(t, x, 1)
	x.Take(1)

	require.NoError(t, x.OnEcho(echo(2, 5)))
	assert.Equal(t, 0, x.PointsBuffered())
}

func TestExtractor_Reset(t *testing.T) {
	x := NewExtractor(0, 0)
	x.OnLineStart(decode.LineUp)
	feed(t, x, 2, 1)
	x.SetPulsesToIgnore(4)

	x.Reset()
	assert.Equal(t, 0, x.PulsesReadFile())
	assert.Equal(t, 0, x.PulsesBuffered())
	assert.Equal(t, 0, x.PointsBuffered())
	assert.Equal(t, 0, x.PulsesToIgnore())

	x.OnShot(shot(0))
	p := x.Pulses()[0]
	assert.Equal(t, uint64(0), p.PulseID)
	assert.Equal(t, uint32(0), p.Scanline)
	assert.Equal(t, uint32(1), p.ScanlineIdx)
}

func TestExtractor_DispatchSynthetic(t *testing.T) {
	units := decode.Synthetic(decode.SyntheticConfig{Lines: 3, ShotsPerLine: 50, MaxEchoes: 4, EventsPerUnit: 6, Seed: 5})
	shots, echoes := decode.CountEvents(units)

	x := NewExtractor(0, 0)
	for _, u := range units {
		require.NoError(t, decode.Dispatch(u, x))
	}
	assert.Equal(t, shots, x.PulsesReadFile())
	assert.Equal(t, shots, x.PulsesBuffered())
	assert.Equal(t, echoes, x.PointsBuffered())
	checkLinkage(t, x.Pulses(), x.Points())

	for i, p := range x.Pulses() {
		assert.Equal(t, uint64(i), p.PulseID)
		assert.Equal(t, uint32(i/50+1), p.Scanline)
	}
}
