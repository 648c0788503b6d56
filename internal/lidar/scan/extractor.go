package scan

import (
	"errors"

	"github.com/banshee-data/scanfile/internal/lidar/decode"
	"github.com/banshee-data/scanfile/internal/lidar/recordbuf"
)

// ErrPointBeforePulse is returned when an echo arrives before any shot.
var ErrPointBeforePulse = errors.New("scan: point before pulse")

// Extractor accumulates pulses and points from decoded events. It
// implements decode.Handler and is not safe for concurrent use.
//
// Points owned by the buffered pulses are contiguous and in pulse order,
// and each buffered pulse's PointStartIdx is relative to the front of the
// point buffer.
type Extractor struct {
	pulses *recordbuf.Buffer[Pulse]
	points *recordbuf.Buffer[Point]

	total       uint64 // shots observed since the last reset
	ignore      int
	scanline    uint32
	scanlineIdx uint32

	initialCapacity int
	growBy          int
}

var _ decode.Handler = (*Extractor)(nil)

// NewExtractor returns an Extractor whose buffers start with room for
// initialCapacity records and grow by growBy.
func NewExtractor(initialCapacity, growBy int) *Extractor {
	return &Extractor{
		pulses:          recordbuf.New[Pulse](initialCapacity, growBy),
		points:          recordbuf.New[Point](initialCapacity, growBy),
		initialCapacity: initialCapacity,
		growBy:          growBy,
	}
}

// OnShot records a shot. Shots are counted even while being ignored.
func (x *Extractor) OnShot(s decode.Shot) {
	id := x.total
	x.scanlineIdx++
	x.total++

	if x.ignore > 0 {
		x.ignore--
		return
	}

	az, zen := ShotAngles(s.Direction)
	x.pulses.Push(Pulse{
		PulseID:     id,
		GPSTime:     Nanoseconds(s.TimeSorg),
		Azimuth:     float32(az),
		Zenith:      float32(zen),
		Scanline:    x.scanline,
		ScanlineIdx: x.scanlineIdx,
		XIdx:        float64(x.scanline),
		YIdx:        float64(x.scanlineIdx),
		XOrigin:     s.Origin.X,
		YOrigin:     s.Origin.Y,
		ZOrigin:     float32(s.Origin.Z),
	})
}

// OnEcho attaches a return to the most recent shot. Returns of a shot that
// was ignored or has already left the buffer are dropped.
func (x *Extractor) OnEcho(e decode.Echo) error {
	if x.total == 0 {
		return ErrPointBeforePulse
	}
	pulse := x.pulses.Last()
	if pulse == nil || pulse.PulseID != x.total-1 {
		return nil
	}
	if pulse.PointCount == 0 {
		pulse.PointStartIdx = uint32(x.points.Len())
	}
	pulse.PointCount++

	rng, vertex := FloorRange(e.Range, e.Vertex)
	x.points.Push(Point{
		ReturnID:        uint64(e.ReturnIndex),
		GPSTime:         Nanoseconds(e.Time),
		AmplitudeReturn: e.Amplitude,
		WidthReturn:     e.Deviation,
		Classification:  ClassUnclassified,
		Range:           rng,
		Papp:            Papp(float64(e.Reflectance)),
		X:               vertex.X,
		Y:               vertex.Y,
		Z:               float32(vertex.Z),
	})
	return nil
}

// OnLineStart begins a new scan line. Up and down sweeps are treated alike.
func (x *Extractor) OnLineStart(decode.LineDirection) {
	x.scanline++
	x.scanlineIdx = 0
}

// SetPulsesToIgnore makes the next n shots count without being buffered.
func (x *Extractor) SetPulsesToIgnore(n int) {
	if n < 0 {
		n = 0
	}
	x.ignore = n
}

// PulsesToIgnore returns the number of shots still to be skipped.
func (x *Extractor) PulsesToIgnore() int { return x.ignore }

// PulsesReadFile returns the number of shots observed, buffered or not.
func (x *Extractor) PulsesReadFile() int { return int(x.total) }

// PulsesBuffered returns the number of buffered pulses.
func (x *Extractor) PulsesBuffered() int { return x.pulses.Len() }

// PointsBuffered returns the number of buffered points.
func (x *Extractor) PointsBuffered() int { return x.points.Len() }

// PulsesConsumed returns the logical index of the first buffered pulse:
// every shot before it was either handed out or skipped.
func (x *Extractor) PulsesConsumed() int { return int(x.total) - x.pulses.Len() }

// FirstPointIdx returns the PointStartIdx of the first buffered pulse.
func (x *Extractor) FirstPointIdx() uint32 {
	if p := x.pulses.First(); p != nil {
		return p.PointStartIdx
	}
	return 0
}

// Pulses returns the buffered pulses. The slice is only valid until the
// next event or split.
func (x *Extractor) Pulses() []Pulse { return x.pulses.Records() }

// Points returns the buffered points. The slice is only valid until the
// next event or split.
func (x *Extractor) Points() []Point { return x.points.Records() }

// RemoveLowerPulses discards the first n buffered pulses and their points.
// It returns the number of points discarded.
func (x *Extractor) RemoveLowerPulses(n int) int {
	if n <= 0 || x.pulses.Len() == 0 {
		return 0
	}
	k := ownedPoints(x.pulses, n)
	x.pulses.RemoveFront(n)
	x.points.RemoveFront(k)
	renumber(x.pulses, uint32(k))
	return k
}

// Take splits off the first n buffered pulses (clamped) together with
// exactly the points they own. The returned pulses index into the returned
// points; the records left behind are renumbered against the new front.
func (x *Extractor) Take(n int) (*recordbuf.Buffer[Pulse], *recordbuf.Buffer[Point]) {
	k := ownedPoints(x.pulses, n)
	pulses := x.pulses.SplitLower(n)
	points := x.points.SplitLower(k)
	renumber(x.pulses, uint32(k))
	return pulses, points
}

// Reset returns the extractor to its freshly constructed state.
func (x *Extractor) Reset() {
	x.pulses = recordbuf.New[Pulse](x.initialCapacity, x.growBy)
	x.points = recordbuf.New[Point](x.initialCapacity, x.growBy)
	x.total = 0
	x.ignore = 0
	x.scanline = 0
	x.scanlineIdx = 0
}
