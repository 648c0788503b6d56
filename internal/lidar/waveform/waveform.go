// Package waveform reads and writes the full-waveform sample files that
// accompany a scan. Records are addressed by their position in the file.
//
// File layout (little-endian):
//
//	header: magic "WFMR" | version u16 | reserved u16
//	record: time_sorg f64 | time_external f64 | origin 3*f64 |
//	        direction 3*f64 | flags u16 | facet u16 | block count u32 |
//	        blocks...
//	block:  channel u16 | time_sosbl f64 | sample count u32 | samples u16...
package waveform

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// FileExtension is the conventional extension for waveform files.
const FileExtension = ".wfm"

const (
	Magic      = "WFMR"
	Version    = 1
	headerSize = 8

	recordFixedSize = 8 + 8 + 3*8 + 3*8 + 2 + 2 + 4
	blockFixedSize  = 2 + 8 + 4

	// Limits applied while reading so a corrupt count cannot force a huge
	// allocation.
	MaxBlocksPerRecord = 1 << 12
	MaxSamplesPerBlock = 1 << 20
)

// Record flags.
const (
	FlagGPSSynchronized uint16 = 1 << 0
	FlagReferencePulse  uint16 = 1 << 1
)

// ErrFormat is wrapped by every error caused by malformed waveform data.
var ErrFormat = errors.New("waveform: malformed file")

// SampleBlock is a run of consecutive samples from one receiver channel.
type SampleBlock struct {
	Channel   uint16
	TimeSosbl float64 // start of sample block, seconds
	Samples   []uint16
}

// Record is the waveform of one shot.
type Record struct {
	TimeSorg     float64 // start of range gate, seconds
	TimeExternal float64 // external time relative to epoch, seconds
	Origin       r3.Vec
	Direction    r3.Vec
	Flags        uint16
	Facet        uint16
	Blocks       []SampleBlock
}

// size returns the encoded size of r in bytes.
func (r *Record) size() int {
	n := recordFixedSize
	for _, b := range r.Blocks {
		n += blockFixedSize + 2*len(b.Samples)
	}
	return n
}

// Source is a positioned reader over waveform records.
type Source interface {
	NumRecords() int
	Tell() int
	Seek(i int) error
	Read() (*Record, error)
	Close() error
}
