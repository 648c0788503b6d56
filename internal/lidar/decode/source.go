package decode

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/scanfile/internal/fsutil"
	"github.com/banshee-data/scanfile/internal/monitoring"
)

// ErrSourceClosed is returned by sources used after Close.
var ErrSourceClosed = errors.New("decode: source closed")

// Source is a forward-only supplier of decoded units that can be rewound
// to its beginning.
type Source interface {
	// AtEnd reports whether the stream is exhausted.
	AtEnd() bool
	// Next returns the next unit. It returns io.EOF when AtEnd is true.
	Next() (Unit, error)
	// Rewind repositions the stream at its first unit.
	Rewind() error
	// Close releases the underlying resources.
	Close() error
}

// StreamSource reads a decoded-unit stream file.
type StreamSource struct {
	mu     sync.Mutex
	name   string
	file   fsutil.File
	dec    *Decoder
	units  int
	closed bool
}

// OpenStream opens name on fsys and validates the stream header.
func OpenStream(fsys fsutil.FileSystem, name string) (*StreamSource, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream %s: %w", name, err)
	}
	s := &StreamSource{name: name, file: f, dec: NewDecoder(f)}
	if err := s.dec.ReadHeader(); err != nil {
		f.Close()
		return nil, err
	}
	monitoring.Debugf("decode: opened stream %s", name)
	return s, nil
}

// AtEnd reports whether no further units remain.
func (s *StreamSource) AtEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	return !s.dec.More()
}

// Next decodes the next unit.
func (s *StreamSource) Next() (Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	u, err := s.dec.Next()
	if err != nil {
		return nil, err
	}
	s.units++
	return u, nil
}

// Rewind seeks back to the first unit.
func (s *StreamSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind stream %s: %w", s.name, err)
	}
	s.dec.Reset(s.file)
	if err := s.dec.ReadHeader(); err != nil {
		return err
	}
	monitoring.Debugf("decode: rewound %s after %d units", s.name, s.units)
	s.units = 0
	return nil
}

// Close closes the stream file. Closing twice is a no-op.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
