package canbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/canscope/canscope/internal/dispatch"
	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/tracebuf"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func virtualConfig(channel string) Config {
	return Config{Interface: VirtualInterface, Channel: channel, Bus: 1}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Interface: "does-not-exist"}); err == nil {
		t.Error("Open with unknown driver succeeded")
	}
}

func TestDriversIncludesVirtual(t *testing.T) {
	found := false
	for _, name := range Drivers() {
		if name == VirtualInterface {
			found = true
		}
	}
	if !found {
		t.Errorf("Drivers() = %v, missing %q", Drivers(), VirtualInterface)
	}
}

func TestVirtualBroadcast(t *testing.T) {
	cfg := virtualConfig("vcan-broadcast")
	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	b, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	sent := frame.Frame{ID: 0x123, Dir: frame.Tx, Data: []byte{0xDE, 0xAD}}
	if err := a.Send(sent); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Both endpoints see the frame, the sender included, as Rx.
	for _, adapter := range []Adapter{a, b} {
		got, err := adapter.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if got.ID != sent.ID {
			t.Errorf("ID = %03X, want 123", got.ID)
		}
		if got.Dir != frame.Rx {
			t.Errorf("Dir = %v, want Rx", got.Dir)
		}
		if got.Channel != cfg.Channel {
			t.Errorf("Channel = %q, want %q", got.Channel, cfg.Channel)
		}
		if got.Timestamp.IsZero() {
			t.Error("Timestamp not stamped on send")
		}
	}
}

func TestVirtualChannelsIsolated(t *testing.T) {
	a, err := Open(virtualConfig("vcan-iso-0"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	b, err := Open(virtualConfig("vcan-iso-1"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	if err := a.Send(frame.Frame{ID: 0x42}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := b.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Recv on isolated channel = %v, want deadline exceeded", err)
	}
}

func TestVirtualClose(t *testing.T) {
	a, err := Open(virtualConfig("vcan-close"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := a.Send(frame.Frame{ID: 1}); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("Send after Close = %v, want ErrAdapterClosed", err)
	}
	if _, err := a.Recv(context.Background()); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("Recv after Close = %v, want ErrAdapterClosed", err)
	}
}

func TestReceiverDispatchesAndRecords(t *testing.T) {
	cfg := virtualConfig("vcan-receiver")
	endpoint, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer endpoint.Close()
	tap, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tap.Close()

	d := dispatch.New(testLogger())
	defer d.Close()
	buf := tracebuf.New(16)
	w, err := buf.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter failed: %v", err)
	}
	defer w.Release()

	var mu sync.Mutex
	var got []uint32
	if _, err := d.Subscribe("sink", dispatch.All(), func(f frame.Frame) error {
		mu.Lock()
		got = append(got, f.ID)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	r := NewReceiver(tap, d, w, testLogger(), nil)
	r.Start()

	for i := 1; i <= 3; i++ {
		if err := endpoint.Send(frame.Frame{ID: uint32(i), Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("dispatched %d frames, want 3", len(got))
	}
	snap := buf.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("recorded %d frames, want 3", len(snap))
	}
	for i, rec := range snap {
		if rec.Seq != uint64(i+1) {
			t.Errorf("record %d: Seq = %d, want %d", i, rec.Seq, i+1)
		}
	}
}

func TestReceiverStopIsSynchronous(t *testing.T) {
	cfg := virtualConfig("vcan-stop")
	endpoint, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer endpoint.Close()
	tap, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tap.Close()

	d := dispatch.New(testLogger())
	defer d.Close()

	r := NewReceiver(tap, d, nil, testLogger(), nil)
	r.Start()
	r.Stop()

	// After Stop returns, traffic no longer reaches the dispatcher.
	var mu sync.Mutex
	count := 0
	if _, err := d.Subscribe("late", dispatch.All(), func(frame.Frame) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := endpoint.Send(frame.Frame{ID: 7}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("dispatched %d frames after Stop", count)
	}

	// A stopped receiver can be started again.
	r.Start()
	r.Stop()
}

func TestReceiverReportsAdapterClosed(t *testing.T) {
	cfg := virtualConfig("vcan-fault")
	tap, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	d := dispatch.New(testLogger())
	defer d.Close()

	errCh := make(chan error, 1)
	r := NewReceiver(tap, d, nil, testLogger(), func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	r.Start()

	tap.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrAdapterClosed) {
			t.Errorf("reported %v, want ErrAdapterClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("adapter close not reported")
	}
}

func TestDisplayName(t *testing.T) {
	if got := (Config{Name: "Bench"}).DisplayName(); got != "Bench" {
		t.Errorf("DisplayName = %q, want Bench", got)
	}
	if got := (Config{Bus: 2}).DisplayName(); got != "Connection2" {
		t.Errorf("DisplayName = %q, want Connection2", got)
	}
}
