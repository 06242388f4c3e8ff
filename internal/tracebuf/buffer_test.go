package tracebuf

import (
	"sync"
	"testing"
	"time"

	"github.com/canscope/canscope/internal/frame"
)

func testFrame(id uint32, at time.Time) frame.Frame {
	return frame.Frame{ID: id, Data: []byte{byte(id)}, Timestamp: at}
}

func fill(t *testing.T, w *Writer, start time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * 10 * time.Millisecond)
		if _, err := w.Append(testFrame(uint32(i%0x700), at)); err != nil {
			t.Fatalf("Append(%d) failed: %v", i, err)
		}
	}
}

func TestAppendAndSnapshot(t *testing.T) {
	b := New(10)
	w, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	defer w.Release()

	start := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	fill(t, w, start, 5)

	snap := b.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("Snapshot len = %d, want 5", len(snap))
	}
	for i, rec := range snap {
		if rec.Seq != uint64(i+1) {
			t.Errorf("record %d: Seq = %d, want %d", i, rec.Seq, i+1)
		}
		wantOffset := time.Duration(i) * 10 * time.Millisecond
		if rec.Offset != wantOffset {
			t.Errorf("record %d: Offset = %v, want %v", i, rec.Offset, wantOffset)
		}
	}
	if b.Len() != 5 || b.TotalWritten() != 5 {
		t.Errorf("Len = %d, TotalWritten = %d, want 5, 5", b.Len(), b.TotalWritten())
	}
}

func TestWrapKeepsNewest(t *testing.T) {
	const capacity = 8
	b := New(capacity)
	w, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	defer w.Release()

	start := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	fill(t, w, start, 20)

	snap := b.Snapshot()
	if len(snap) != capacity {
		t.Fatalf("Snapshot len = %d, want %d", len(snap), capacity)
	}
	// Oldest surviving record is 20-8+1 = 13.
	for i, rec := range snap {
		if want := uint64(13 + i); rec.Seq != want {
			t.Errorf("record %d: Seq = %d, want %d", i, rec.Seq, want)
		}
	}
	if b.Len() != capacity {
		t.Errorf("Len = %d, want %d", b.Len(), capacity)
	}
	if b.TotalWritten() != 20 {
		t.Errorf("TotalWritten = %d, want 20", b.TotalWritten())
	}
}

func TestWriterExclusive(t *testing.T) {
	b := New(4)
	w1, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("first AcquireWriter failed: %v", err)
	}
	if _, err := b.AcquireWriter(); err != ErrWriterActive {
		t.Errorf("second AcquireWriter error = %v, want ErrWriterActive", err)
	}

	w1.Release()
	w2, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter after release failed: %v", err)
	}
	w2.Release()

	// Idempotent release must not free the token twice.
	w3, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	w2.Release()
	if _, err := b.AcquireWriter(); err != ErrWriterActive {
		t.Errorf("stale Release freed the token: %v", err)
	}
	w3.Release()
}

func TestAppendAfterRelease(t *testing.T) {
	b := New(4)
	w, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	w.Release()
	if _, err := w.Append(testFrame(1, time.Now())); err != ErrWriterReleased {
		t.Errorf("Append after release error = %v, want ErrWriterReleased", err)
	}
}

func TestClear(t *testing.T) {
	b := New(4)
	w, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	fill(t, w, time.Now(), 3)

	if err := b.Clear(); err != ErrWriterActive {
		t.Errorf("Clear with active writer error = %v, want ErrWriterActive", err)
	}

	w.Release()
	if err := b.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if b.Len() != 0 || b.TotalWritten() != 0 || len(b.Snapshot()) != 0 {
		t.Error("buffer not empty after Clear")
	}
	if !b.StartTime().IsZero() {
		t.Error("StartTime not reset by Clear")
	}

	// A new session restarts sequence numbers from 1.
	w2, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	defer w2.Release()
	rec, err := w2.Append(testFrame(1, time.Now()))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("Seq after Clear = %d, want 1", rec.Seq)
	}
}

func TestConcurrentSnapshots(t *testing.T) {
	const capacity = 64
	b := New(capacity)
	w, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := b.Snapshot()
				if len(snap) > capacity {
					t.Errorf("snapshot larger than capacity: %d", len(snap))
					return
				}
				for i := 1; i < len(snap); i++ {
					if snap[i].Seq != snap[i-1].Seq+1 {
						t.Errorf("snapshot gap: %d after %d", snap[i].Seq, snap[i-1].Seq)
						return
					}
				}
			}
		}()
	}

	start := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 10000; i++ {
		at := start.Add(time.Duration(i) * time.Microsecond)
		if _, err := w.Append(testFrame(uint32(i%0x700), at)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	w.Release()

	snap := b.Snapshot()
	if len(snap) != capacity {
		t.Fatalf("final snapshot len = %d, want %d", len(snap), capacity)
	}
	if snap[len(snap)-1].Seq != 10000 {
		t.Errorf("newest Seq = %d, want 10000", snap[len(snap)-1].Seq)
	}
}

func TestStartTimeConcurrentWithAppend(t *testing.T) {
	b := New(64)
	w, err := b.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	defer w.Release()

	if !b.StartTime().IsZero() {
		t.Fatalf("StartTime before first append = %v, want zero", b.StartTime())
	}

	origin := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			at := origin.Add(time.Duration(i) * time.Microsecond)
			if _, err := w.Append(testFrame(uint32(i%0x700), at)); err != nil {
				t.Errorf("Append(%d) failed: %v", i, err)
				return
			}
		}
	}()

	// Once the origin becomes visible it must be the first frame's timestamp,
	// however the read interleaves with the append storm.
	for {
		st := b.StartTime()
		if st.IsZero() {
			continue
		}
		if !st.Equal(origin) {
			t.Errorf("StartTime = %v, want %v", st, origin)
		}
		break
	}
	<-done
	if !b.StartTime().Equal(origin) {
		t.Errorf("StartTime after appends = %v, want %v", b.StartTime(), origin)
	}
}

func TestDefaultCapacity(t *testing.T) {
	if got := New(0).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(-5).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
}
