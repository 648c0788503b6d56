package waveform

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// SyntheticConfig describes generated waveform records.
type SyntheticConfig struct {
	Records         int
	Channels        int // receiver channels per record, numbered from 0; 0 selects 2
	SamplesPerBlock int // 0 selects 32
	Seed            int64
	StartTime       float64
	ShotInterval    float64 // 0 selects 10µs
}

// Synthetic returns deterministic waveform records. Every record carries a
// reference pulse on channel 0 and a variable number of echo blocks on the
// other channels.
func Synthetic(cfg SyntheticConfig) []*Record {
	channels := cfg.Channels
	if channels <= 0 {
		channels = 2
	}
	samples := cfg.SamplesPerBlock
	if samples <= 0 {
		samples = 32
	}
	interval := cfg.ShotInterval
	if interval <= 0 {
		interval = 10e-6
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	out := make([]*Record, 0, cfg.Records)
	for i := 0; i < cfg.Records; i++ {
		t := cfg.StartTime + float64(i)*interval
		rec := &Record{
			TimeSorg:     t,
			TimeExternal: 1.7e9 + t,
			Origin:       r3.Vec{Z: 1.5},
			Direction:    r3.Vec{X: math.Sin(float64(i) / 100), Y: math.Cos(float64(i) / 100)},
			Flags:        FlagGPSSynchronized | FlagReferencePulse,
			Facet:        uint16(i % 4),
		}
		rec.Blocks = append(rec.Blocks, pulseBlock(0, t, samples, rng))
		for ch := 1; ch < channels; ch++ {
			for n := rng.Intn(3); n > 0; n-- {
				rec.Blocks = append(rec.Blocks, pulseBlock(uint16(ch), t+rng.Float64()*1e-6, samples, rng))
			}
		}
		out = append(out, rec)
	}
	return out
}

func pulseBlock(ch uint16, t float64, n int, rng *rand.Rand) SampleBlock {
	peak := 200 + rng.Float64()*3000
	centre := float64(n) / 2
	s := make([]uint16, n)
	for j := range s {
		d := (float64(j) - centre) / 3
		s[j] = uint16(peak*math.Exp(-d*d) + 50)
	}
	return SampleBlock{Channel: ch, TimeSosbl: t, Samples: s}
}

// CountChannel returns the number of sample blocks on channel ch.
func (r *Record) CountChannel(ch uint16) int {
	n := 0
	for _, b := range r.Blocks {
		if b.Channel == ch {
			n++
		}
	}
	return n
}
