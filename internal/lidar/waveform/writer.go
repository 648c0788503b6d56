package waveform

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer appends records to a waveform file.
type Writer struct {
	w           io.Writer
	wroteHeader bool
	records     int
}

// NewWriter returns a Writer that emits the file header before the first
// record.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeHeader() error {
	hdr := make([]byte, headerSize)
	copy(hdr, Magic)
	binary.LittleEndian.PutUint16(hdr[4:6], Version)
	if _, err := w.w.Write(hdr); err != nil {
		return fmt.Errorf("failed to write waveform header: %w", err)
	}
	w.wroteHeader = true
	return nil
}

// Write appends rec.
func (w *Writer) Write(rec *Record) error {
	if len(rec.Blocks) > MaxBlocksPerRecord {
		return fmt.Errorf("record has %d sample blocks, maximum %d", len(rec.Blocks), MaxBlocksPerRecord)
	}
	for i, b := range rec.Blocks {
		if len(b.Samples) > MaxSamplesPerBlock {
			return fmt.Errorf("block %d has %d samples, maximum %d", i, len(b.Samples), MaxSamplesPerBlock)
		}
	}
	if !w.wroteHeader {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}

	buf := make([]byte, 0, rec.size())
	buf = putF64(buf, rec.TimeSorg)
	buf = putF64(buf, rec.TimeExternal)
	buf = putF64(buf, rec.Origin.X)
	buf = putF64(buf, rec.Origin.Y)
	buf = putF64(buf, rec.Origin.Z)
	buf = putF64(buf, rec.Direction.X)
	buf = putF64(buf, rec.Direction.Y)
	buf = putF64(buf, rec.Direction.Z)
	buf = binary.LittleEndian.AppendUint16(buf, rec.Flags)
	buf = binary.LittleEndian.AppendUint16(buf, rec.Facet)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Blocks)))
	for _, b := range rec.Blocks {
		buf = binary.LittleEndian.AppendUint16(buf, b.Channel)
		buf = putF64(buf, b.TimeSosbl)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Samples)))
		for _, s := range b.Samples {
			buf = binary.LittleEndian.AppendUint16(buf, s)
		}
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write waveform record %d: %w", w.records, err)
	}
	w.records++
	return nil
}

// Flush writes the header of a file with no records. It is a no-op once a
// record has been written.
func (w *Writer) Flush() error {
	if w.wroteHeader {
		return nil
	}
	return w.writeHeader()
}

// Records returns the number of records written.
func (w *Writer) Records() int { return w.records }

func putF64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}
