// Package scan turns decoded shot and echo events into linked pulse and
// point records.
package scan

// ClassUnclassified is the classification assigned to every point.
const ClassUnclassified uint8 = 1

// Pulse is one scanner shot.
type Pulse struct {
	PulseID     uint64  // zero-based logical index in the stream
	GPSTime     uint64  // nanoseconds
	Azimuth     float32 // degrees, [0, 360)
	Zenith      float32 // degrees
	Scanline    uint32
	ScanlineIdx uint32 // 1 for the first shot after a line start
	XIdx        float64
	YIdx        float64
	XOrigin     float64
	YOrigin     float64
	ZOrigin     float32

	// PointStartIdx indexes the pulse's first point in the point records
	// that accompany it. It is 0 when PointCount is 0.
	PointStartIdx uint32
	PointCount    uint16
}

// Point is one return echo.
type Point struct {
	ReturnID        uint64 // 1-based return index within the pulse
	GPSTime         uint64 // nanoseconds
	AmplitudeReturn float32
	WidthReturn     float32
	Classification  uint8
	Range           float64
	Papp            float64 // apparent reflectance, linear
	X               float64
	Y               float64
	Z               float32
}
