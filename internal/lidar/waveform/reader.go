package waveform

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/banshee-data/scanfile/internal/fsutil"
	"github.com/banshee-data/scanfile/internal/monitoring"
)

// Reader provides random access to the records of a waveform file. The
// record offset index is built when the file is opened.
type Reader struct {
	mu      sync.Mutex
	name    string
	file    fsutil.File
	br      *bufio.Reader
	offsets []int64
	pos     int
	closed  bool
}

var _ Source = (*Reader)(nil)

// Open opens a waveform file and indexes its records.
func Open(fsys fsutil.FileSystem, name string) (*Reader, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open waveform file %s: %w", name, err)
	}
	r := &Reader{name: name, file: f, br: bufio.NewReaderSize(f, 64<<10)}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.buildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.seekOffset(headerSize); err != nil {
		f.Close()
		return nil, err
	}
	monitoring.Debugf("waveform: indexed %d records in %s", len(r.offsets), name)
	return r, nil
}

func (r *Reader) readHeader() error {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r.br, hdr); err != nil {
		return fmt.Errorf("%w: %s: reading header: %v", ErrFormat, r.name, err)
	}
	if string(hdr[0:4]) != Magic {
		return fmt.Errorf("%w: %s: bad magic %q", ErrFormat, r.name, hdr[0:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != Version {
		return fmt.Errorf("%w: %s: unsupported version %d", ErrFormat, r.name, v)
	}
	return nil
}

// buildIndex walks every record from just after the header, skipping the
// sample data.
func (r *Reader) buildIndex() error {
	off := int64(headerSize)
	fixed := make([]byte, recordFixedSize)
	block := make([]byte, blockFixedSize)
	for {
		n, err := io.ReadFull(r.br, fixed)
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				return nil
			}
			return fmt.Errorf("%w: %s: record %d at offset %d truncated", ErrFormat, r.name, len(r.offsets), off)
		}
		count := binary.LittleEndian.Uint32(fixed[recordFixedSize-4:])
		if count > MaxBlocksPerRecord {
			return fmt.Errorf("%w: %s: record %d has %d sample blocks", ErrFormat, r.name, len(r.offsets), count)
		}
		size := int64(recordFixedSize)
		for i := uint32(0); i < count; i++ {
			if _, err := io.ReadFull(r.br, block); err != nil {
				return fmt.Errorf("%w: %s: record %d block %d truncated", ErrFormat, r.name, len(r.offsets), i)
			}
			samples := binary.LittleEndian.Uint32(block[10:14])
			if samples > MaxSamplesPerBlock {
				return fmt.Errorf("%w: %s: record %d block %d has %d samples", ErrFormat, r.name, len(r.offsets), i, samples)
			}
			skip := int(samples) * 2
			if d, err := r.br.Discard(skip); err != nil || d != skip {
				return fmt.Errorf("%w: %s: record %d block %d samples truncated", ErrFormat, r.name, len(r.offsets), i)
			}
			size += blockFixedSize + int64(skip)
		}
		r.offsets = append(r.offsets, off)
		off += size
	}
}

func (r *Reader) seekOffset(off int64) error {
	if _, err := r.file.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek waveform file %s: %w", r.name, err)
	}
	r.br.Reset(r.file)
	return nil
}

// NumRecords returns the number of records in the file.
func (r *Reader) NumRecords() int { return len(r.offsets) }

// Tell returns the index of the next record Read will return.
func (r *Reader) Tell() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Seek positions the reader at record i. Seeking to NumRecords or beyond
// positions at the end.
func (r *Reader) Seek(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	if i < 0 {
		return fmt.Errorf("waveform: negative record index %d", i)
	}
	if i >= len(r.offsets) {
		r.pos = len(r.offsets)
		return nil
	}
	if err := r.seekOffset(r.offsets[i]); err != nil {
		return err
	}
	r.pos = i
	return nil
}

var errClosed = errors.New("waveform: reader closed")

// Read returns the record at the current position and advances. It
// returns io.EOF after the last record.
func (r *Reader) Read() (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errClosed
	}
	if r.pos >= len(r.offsets) {
		return nil, io.EOF
	}

	fixed := make([]byte, recordFixedSize)
	if _, err := io.ReadFull(r.br, fixed); err != nil {
		return nil, fmt.Errorf("%w: %s: reading record %d: %v", ErrFormat, r.name, r.pos, err)
	}
	rec := &Record{
		TimeSorg:     f64(fixed[0:]),
		TimeExternal: f64(fixed[8:]),
		Flags:        binary.LittleEndian.Uint16(fixed[64:66]),
		Facet:        binary.LittleEndian.Uint16(fixed[66:68]),
	}
	rec.Origin.X, rec.Origin.Y, rec.Origin.Z = f64(fixed[16:]), f64(fixed[24:]), f64(fixed[32:])
	rec.Direction.X, rec.Direction.Y, rec.Direction.Z = f64(fixed[40:]), f64(fixed[48:]), f64(fixed[56:])

	count := binary.LittleEndian.Uint32(fixed[68:72])
	rec.Blocks = make([]SampleBlock, count)
	hdr := make([]byte, blockFixedSize)
	for i := range rec.Blocks {
		if _, err := io.ReadFull(r.br, hdr); err != nil {
			return nil, fmt.Errorf("%w: %s: reading record %d block %d: %v", ErrFormat, r.name, r.pos, i, err)
		}
		n := binary.LittleEndian.Uint32(hdr[10:14])
		raw := make([]byte, 2*int(n))
		if _, err := io.ReadFull(r.br, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: reading record %d block %d samples: %v", ErrFormat, r.name, r.pos, i, err)
		}
		samples := make([]uint16, n)
		for j := range samples {
			samples[j] = binary.LittleEndian.Uint16(raw[2*j:])
		}
		rec.Blocks[i] = SampleBlock{
			Channel:   binary.LittleEndian.Uint16(hdr[0:2]),
			TimeSosbl: f64(hdr[2:]),
			Samples:   samples,
		}
	}
	r.pos++
	return rec, nil
}

// Close closes the file. Closing twice is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

func f64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
}
