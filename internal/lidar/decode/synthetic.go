package decode

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// SyntheticConfig describes a generated scan.
type SyntheticConfig struct {
	Lines         int     // scan lines; each opens with a line-start event
	ShotsPerLine  int     // shots per line
	MaxEchoes     int     // each shot gets 0..MaxEchoes echoes
	EventsPerUnit int     // events per unit; 0 selects 16
	Seed          int64   // random seed
	StartTime     float64 // time of the first shot, seconds
	ShotInterval  float64 // seconds between shots; 0 selects 10µs
}

const speedOfLight = 299792458.0

// Synthetic returns a deterministic scan for cfg. Lines alternate between
// up and down sweeps. Events are chunked by count, so a shot's echoes are
// regularly delivered in the unit after the shot. Roughly one echo in
// twenty has zero range.
func Synthetic(cfg SyntheticConfig) []Unit {
	perUnit := cfg.EventsPerUnit
	if perUnit <= 0 {
		perUnit = 16
	}
	interval := cfg.ShotInterval
	if interval <= 0 {
		interval = 10e-6
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var events []Event
	shot := 0
	for line := 0; line < cfg.Lines; line++ {
		dir := LineUp
		if line%2 == 1 {
			dir = LineDown
		}
		events = append(events, LineStartEvent(dir))

		// Each line is a vertical sweep at a fixed azimuth.
		az := 2 * math.Pi * float64(line) / float64(max(cfg.Lines, 1))
		for i := 0; i < cfg.ShotsPerLine; i++ {
			frac := float64(i) / float64(max(cfg.ShotsPerLine, 1))
			if dir == LineDown {
				frac = 1 - frac
			}
			zen := math.Pi/6 + frac*2*math.Pi/3
			d := r3.Vec{
				X: math.Sin(zen) * math.Sin(az),
				Y: math.Sin(zen) * math.Cos(az),
				Z: math.Cos(zen),
			}
			origin := r3.Vec{X: 0.1 * float64(line), Y: 0, Z: 1.5}
			t := cfg.StartTime + float64(shot)*interval
			events = append(events, ShotEvent(Shot{
				TimeSorg:  t,
				Direction: r3.Scale(1+rng.Float64(), d),
				Origin:    origin,
			}))

			echoes := 0
			if cfg.MaxEchoes > 0 {
				echoes = rng.Intn(cfg.MaxEchoes + 1)
			}
			rng0 := 2.0
			for j := 0; j < echoes; j++ {
				rng0 += 1 + rng.Float64()*40
				r := rng0
				if rng.Intn(20) == 0 {
					r = 0
				}
				events = append(events, EchoEvent(Echo{
					ReturnIndex: uint16(j + 1),
					Time:        t + 2*r/speedOfLight,
					Amplitude:   float32(5 + rng.Float64()*30),
					Deviation:   float32(rng.Intn(20)),
					Range:       r,
					Reflectance: float32(-20 + rng.Float64()*25),
					Vertex:      r3.Add(origin, r3.Scale(r, d)),
				}))
			}
			shot++
		}
	}

	units := make([]Unit, 0, len(events)/perUnit+1)
	for len(events) > 0 {
		n := min(perUnit, len(events))
		units = append(units, Unit(events[:n:n]))
		events = events[n:]
	}
	return units
}

// CountEvents returns the number of shots and echoes in units.
func CountEvents(units []Unit) (shots, echoes int) {
	for _, u := range units {
		for _, ev := range u {
			switch ev.Kind {
			case KindShot:
				shots++
			case KindEcho:
				echoes++
			}
		}
	}
	return shots, echoes
}
