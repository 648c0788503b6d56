// Package recordbuf provides the growable, contiguous record buffers that
// hold decoded pulses and points between window reads.
//
// A Buffer only ever grows at the back and shrinks at the front. Records
// leave a buffer either by RemoveFront (discarded) or by SplitLower, which
// hands the front of the backing array to a new Buffer without copying.
package recordbuf

// Default sizing used by the pulse and point buffers.
const (
	DefaultInitialCapacity = 200
	DefaultGrowBy          = 100
)

// Buffer is an append-only sequence of fixed-layout records.
// It is not safe for concurrent use.
type Buffer[T any] struct {
	items  []T
	growBy int
}

// New returns an empty buffer with room for initialCapacity records that
// grows by growBy records each time it fills up. Non-positive arguments fall
// back to the package defaults.
func New[T any](initialCapacity, growBy int) *Buffer[T] {
	if initialCapacity <= 0 {
		initialCapacity = DefaultInitialCapacity
	}
	if growBy <= 0 {
		growBy = DefaultGrowBy
	}
	return &Buffer[T]{
		items:  make([]T, 0, initialCapacity),
		growBy: growBy,
	}
}

// Push appends rec. When the buffer is full its capacity grows by exactly
// growBy records.
func (b *Buffer[T]) Push(rec T) {
	if len(b.items) == cap(b.items) {
		grown := make([]T, len(b.items), cap(b.items)+b.growBy)
		copy(grown, b.items)
		b.items = grown
	}
	b.items = append(b.items, rec)
}

// Len returns the number of records currently held.
func (b *Buffer[T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Cap returns the number of records the buffer can hold before growing.
func (b *Buffer[T]) Cap() int {
	return cap(b.items)
}

// At returns a pointer to record i so the owner can update it in place,
// or nil when i is out of range.
func (b *Buffer[T]) At(i int) *T {
	if b == nil || i < 0 || i >= len(b.items) {
		return nil
	}
	return &b.items[i]
}

// Get returns a copy of record i and whether i was in range.
func (b *Buffer[T]) Get(i int) (T, bool) {
	if p := b.At(i); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// First returns the oldest record, or nil when empty.
func (b *Buffer[T]) First() *T {
	return b.At(0)
}

// Last returns the newest record, or nil when empty.
func (b *Buffer[T]) Last() *T {
	return b.At(b.Len() - 1)
}

// RemoveFront discards the first n records. n is clamped to Len; n <= 0 is
// a no-op. Remaining records keep their relative order.
func (b *Buffer[T]) RemoveFront(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.items) {
		b.items = b.items[:0:0]
		return
	}
	b.items = b.items[n:]
}

// SplitLower removes the first n records (clamped to Len) and returns them
// as a new Buffer that now owns that storage. No records are copied: the
// returned buffer takes the front of the backing array, capped so that
// pushes to either buffer can never overwrite the other.
func (b *Buffer[T]) SplitLower(n int) *Buffer[T] {
	if n < 0 {
		n = 0
	}
	if n > len(b.items) {
		n = len(b.items)
	}
	lower := &Buffer[T]{
		items:  b.items[:n:n],
		growBy: b.growBy,
	}
	if n == len(b.items) {
		// Hand over the whole array and start afresh rather than keep a
		// zero-length tail that still pins it.
		b.items = make([]T, 0, b.growBy)
	} else {
		b.items = b.items[n:]
	}
	return lower
}

// Records returns the current contents. The slice aliases the buffer's
// storage and is only valid until the next mutation.
func (b *Buffer[T]) Records() []T {
	if b == nil {
		return nil
	}
	return b.items
}

// Reset drops every record and releases the backing array.
func (b *Buffer[T]) Reset() {
	b.items = make([]T, 0, b.growBy)
}
