// Package tracebuf provides the bounded in-memory trace log: a fixed-capacity
// circular buffer of trace records with a single active writer and any number
// of lock-free snapshot readers.
package tracebuf

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/metrics"
)

// DefaultCapacity is the record capacity used when none is configured.
const DefaultCapacity = 100_000

// ErrWriterActive is returned when an operation requires the buffer to have
// no active writer.
var ErrWriterActive = errors.New("tracebuf: writer active")

// ErrWriterReleased is returned when appending through a released writer.
var ErrWriterReleased = errors.New("tracebuf: writer released")

// Record is one trace buffer entry: a frame plus its session sequence number
// and the time offset from the session start.
type Record struct {
	Seq    uint64
	Offset time.Duration
	Frame  frame.Frame
}

// Buffer is a fixed-capacity circular log of Records.
//
// Exactly one writer (the bus receiver or the trace player, never both) may
// append at a time; the Writer token enforces this. Readers take point-in-time
// snapshots without blocking the writer: slots hold atomically published
// immutable records, and lapped slots are detected by sequence number.
type Buffer struct {
	capacity int
	slots    []atomic.Pointer[Record]
	total    atomic.Uint64             // records appended this session
	active   atomic.Bool               // writer token held
	start    atomic.Pointer[time.Time] // session origin, published on first append
}

// New creates a buffer with the given capacity. Capacity <= 0 selects
// DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		slots:    make([]atomic.Pointer[Record], capacity),
	}
}

// Capacity returns the fixed record capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// Len returns the number of records currently held (at most Capacity).
func (b *Buffer) Len() int {
	n := b.total.Load()
	if n > uint64(b.capacity) {
		return b.capacity
	}
	return int(n)
}

// TotalWritten returns the total number of records appended this session,
// including records already overwritten.
func (b *Buffer) TotalWritten() uint64 { return b.total.Load() }

// StartTime returns the wall-clock origin of the current session, or the
// zero time if nothing has been appended yet. Safe to call while a writer is
// appending.
func (b *Buffer) StartTime() time.Time {
	if p := b.start.Load(); p != nil {
		return *p
	}
	return time.Time{}
}

// Writer is the exclusive append token for a Buffer.
type Writer struct {
	buf      *Buffer
	released atomic.Bool
}

// AcquireWriter claims the buffer's single-writer token. It fails with
// ErrWriterActive while another writer holds it.
func (b *Buffer) AcquireWriter() (*Writer, error) {
	if !b.active.CompareAndSwap(false, true) {
		return nil, ErrWriterActive
	}
	return &Writer{buf: b}, nil
}

// Release returns the writer token. Further appends fail with
// ErrWriterReleased. Release is idempotent.
func (w *Writer) Release() {
	if w.released.CompareAndSwap(false, true) {
		w.buf.active.Store(false)
	}
}

// Append stores the frame as the next record and returns it. The record's
// sequence number is strictly monotonic within the session and its offset is
// relative to the session's first appended frame.
func (w *Writer) Append(f frame.Frame) (Record, error) {
	if w.released.Load() {
		return Record{}, ErrWriterReleased
	}
	b := w.buf
	n := b.total.Load()
	if n == 0 {
		origin := f.Timestamp
		b.start.Store(&origin)
	}
	rec := Record{
		Seq:    n + 1,
		Offset: f.Timestamp.Sub(*b.start.Load()),
		Frame:  f,
	}
	// Publish the record before advancing the counter so a reader that
	// observes the new total always finds the slot populated.
	b.slots[n%uint64(b.capacity)].Store(&rec)
	b.total.Store(n + 1)
	metrics.BufferAppended(b.Len())
	return rec, nil
}

// Snapshot returns the records currently held, oldest first. The result is a
// consistent contiguous range: it never contains a torn record, and records
// overwritten while the snapshot was being taken are dropped from the front
// rather than duplicated or reordered.
func (b *Buffer) Snapshot() []Record {
	t1 := b.total.Load()
	if t1 == 0 {
		return nil
	}
	n := t1
	if n > uint64(b.capacity) {
		n = uint64(b.capacity)
	}
	first := t1 - n // zero-based position of the oldest expected record

	out := make([]Record, 0, n)
	for pos := first; pos < t1; pos++ {
		p := b.slots[pos%uint64(b.capacity)].Load()
		if p == nil {
			continue
		}
		// A lapped slot holds a record from a later revolution; its
		// sequence number will not match the expected position.
		if p.Seq != pos+1 {
			continue
		}
		out = append(out, *p)
	}

	// Keep only the contiguous suffix so a concurrent wrap cannot leave a
	// gap in the middle of the snapshot.
	for i := len(out) - 1; i > 0; i-- {
		if out[i].Seq != out[i-1].Seq+1 {
			return out[i:]
		}
	}
	return out
}

// Clear resets the buffer to an empty session. It fails with ErrWriterActive
// while a writer holds the token.
func (b *Buffer) Clear() error {
	if b.active.Load() {
		return ErrWriterActive
	}
	for i := range b.slots {
		b.slots[i].Store(nil)
	}
	b.total.Store(0)
	b.start.Store(nil)
	metrics.BufferAppended(0)
	return nil
}
