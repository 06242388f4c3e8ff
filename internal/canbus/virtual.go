package canbus

import (
	"context"
	"sync"
	"time"

	"github.com/canscope/canscope/internal/frame"
)

// VirtualInterface is the driver name of the in-memory loopback bus. Every
// adapter opened on the same channel name shares one hub: a frame sent by
// one endpoint is received by all endpoints on that channel, the sender
// included (matching how a virtual socketcan link echoes own traffic).
const VirtualInterface = "virtual"

const virtualQueueDepth = 4096

func init() {
	RegisterDriver(VirtualInterface, openVirtual)
}

var (
	hubsMu sync.Mutex
	hubs   = make(map[string]*virtualHub)
)

type virtualHub struct {
	mu    sync.Mutex
	taps  map[*virtualAdapter]struct{}
}

func getHub(channel string) *virtualHub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	hub, ok := hubs[channel]
	if !ok {
		hub = &virtualHub{taps: make(map[*virtualAdapter]struct{})}
		hubs[channel] = hub
	}
	return hub
}

func (h *virtualHub) attach(a *virtualAdapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps[a] = struct{}{}
}

func (h *virtualHub) detach(a *virtualAdapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.taps, a)
}

// broadcast delivers the frame to every attached endpoint as a received
// frame. Endpoints with full queues lose the frame rather than blocking the
// sender.
func (h *virtualHub) broadcast(f frame.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tap := range h.taps {
		rx := f
		rx.Dir = frame.Rx
		rx.Bus = tap.cfg.Bus
		rx.Channel = tap.cfg.Channel
		select {
		case tap.in <- rx:
		default:
		}
	}
}

type virtualAdapter struct {
	cfg    Config
	hub    *virtualHub
	in     chan frame.Frame
	closed chan struct{}
	once   sync.Once
}

func openVirtual(cfg Config) (Adapter, error) {
	a := &virtualAdapter{
		cfg:    cfg,
		hub:    getHub(cfg.Channel),
		in:     make(chan frame.Frame, virtualQueueDepth),
		closed: make(chan struct{}),
	}
	a.hub.attach(a)
	return a, nil
}

func (a *virtualAdapter) Recv(ctx context.Context) (frame.Frame, error) {
	select {
	case f := <-a.in:
		return f, nil
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	case <-a.closed:
		return frame.Frame{}, ErrAdapterClosed
	}
}

func (a *virtualAdapter) Send(f frame.Frame) error {
	select {
	case <-a.closed:
		return ErrAdapterClosed
	default:
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	a.hub.broadcast(f)
	return nil
}

func (a *virtualAdapter) Close() error {
	a.once.Do(func() {
		a.hub.detach(a)
		close(a.closed)
	})
	return nil
}
