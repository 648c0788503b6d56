package decode

import (
	"io"
	"sync"
)

// MemorySource serves a fixed list of units. Errors can be injected with
// NextErr and NextErrAt.
type MemorySource struct {
	mu sync.Mutex

	Units []Unit

	// NextErr is returned by Next once NextErrAt units have been served.
	NextErr   error
	NextErrAt int

	RewindErr error

	pos     int
	Rewinds int
	Served  int
	Closed  bool
}

// NewMemorySource returns a MemorySource over units.
func NewMemorySource(units []Unit) *MemorySource {
	return &MemorySource{Units: units}
}

// AtEnd reports whether all units have been served.
func (m *MemorySource) AtEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NextErr != nil && m.pos == m.NextErrAt {
		return false
	}
	return m.Closed || m.pos >= len(m.Units)
}

// Next returns the next unit.
func (m *MemorySource) Next() (Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return nil, ErrSourceClosed
	}
	if m.NextErr != nil && m.pos == m.NextErrAt {
		return nil, m.NextErr
	}
	if m.pos >= len(m.Units) {
		return nil, io.EOF
	}
	u := m.Units[m.pos]
	m.pos++
	m.Served++
	return u, nil
}

// Rewind resets the read position.
func (m *MemorySource) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return ErrSourceClosed
	}
	if m.RewindErr != nil {
		return m.RewindErr
	}
	m.pos = 0
	m.Rewinds++
	return nil
}

// Close marks the source closed.
func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Position returns the index of the next unit to serve.
func (m *MemorySource) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}
