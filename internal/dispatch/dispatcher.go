// Package dispatch fans frames out from a single producer to independent
// subscribers. Each subscription owns a bounded queue drained by its own
// goroutine, so a slow or faulty consumer can never stall the producer or
// its peers.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/metrics"
)

// ErrClosed is returned when subscribing to a dispatcher that has been shut down.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// DefaultQueueSize is the per-subscription queue depth used when none is configured.
const DefaultQueueSize = 1024

// CaptureQueueSize is the queue depth the trace-capture subscription should
// request: large enough that loss only occurs if capture falls behind by a
// full buffer's worth of traffic.
const CaptureQueueSize = 1 << 16

// Filter selects which frames a subscription receives: every frame, or only
// frames with one exact arbitration identifier.
type Filter struct {
	all bool
	id  uint32
}

// All matches every frame.
func All() Filter { return Filter{all: true} }

// ID matches frames with exactly the given arbitration identifier.
func ID(id uint32) Filter { return Filter{id: id} }

// Matches reports whether the filter accepts the frame.
func (f Filter) Matches(fr frame.Frame) bool {
	return f.all || f.id == fr.ID
}

// Policy controls what happens when a subscription's queue is full.
type Policy int

const (
	// DropOldest discards the oldest queued frame to make room, favoring
	// live responsiveness over completeness. This is the default.
	DropOldest Policy = iota
	// Block makes the producer wait for queue space. Only appropriate for
	// consumers that must not lose frames and are known to keep up.
	Block
)

// Handler consumes one frame on the subscription's draining goroutine.
// A non-nil error is reported on the dispatcher's error channel; it never
// propagates to the producer.
type Handler func(frame.Frame) error

// DeliveryError describes a fault raised by a subscriber's handler.
type DeliveryError struct {
	Subscription string
	Frame        frame.Frame
	Err          error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("dispatch: delivery to %q failed: %v", e.Subscription, e.Err)
}

// Subscription is a live registration with the dispatcher. The dispatcher
// owns the delivery queue exclusively; the subscriber only sees frames
// through its handler.
type Subscription struct {
	name      string
	filter    Filter
	policy    Policy
	handler   Handler
	queue     chan frame.Frame
	done      chan struct{}
	cancelled atomic.Bool
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// Name returns the subscription's diagnostic name.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many frames were discarded from this subscription's queue.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Delivered returns how many frames were handed to this subscription's handler.
func (s *Subscription) Delivered() uint64 { return s.delivered.Load() }

// Option configures a subscription.
type Option func(*Subscription)

// WithQueueSize sets the subscription's queue depth.
func WithQueueSize(n int) Option {
	return func(s *Subscription) {
		if n > 0 {
			s.queue = make(chan frame.Frame, n)
		}
	}
}

// WithPolicy sets the subscription's overflow policy.
func WithPolicy(p Policy) Option {
	return func(s *Subscription) { s.policy = p }
}

// Dispatcher routes frames from one producer to N subscriptions.
//
// The subscription list is copy-on-write: Subscribe and Unsubscribe build a
// new slice under the control mutex while Dispatch reads the current slice
// with a single atomic load, so steady-state delivery takes no lock.
type Dispatcher struct {
	mu     sync.Mutex
	subs   atomic.Pointer[[]*Subscription]
	errs   chan DeliveryError
	wg     sync.WaitGroup
	closed atomic.Bool
	logger *slog.Logger
}

// New creates a dispatcher. The logger may not be nil.
func New(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		errs:   make(chan DeliveryError, 64),
		logger: logger,
	}
	empty := make([]*Subscription, 0)
	d.subs.Store(&empty)
	return d
}

// Errors returns the channel on which delivery faults are reported. Entries
// are dropped (and logged) if the channel is not being read.
func (d *Dispatcher) Errors() <-chan DeliveryError { return d.errs }

// Subscribe registers a handler for frames accepted by the filter and starts
// its draining goroutine. The name is used for logging and metrics only.
func (d *Dispatcher) Subscribe(name string, filter Filter, handler Handler, opts ...Option) (*Subscription, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	s := &Subscription{
		name:    name,
		filter:  filter,
		policy:  DropOldest,
		handler: handler,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = make(chan frame.Frame, DefaultQueueSize)
	}

	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	old := *d.subs.Load()
	next := make([]*Subscription, len(old), len(old)+1)
	copy(next, old)
	next = append(next, s)
	d.subs.Store(&next)
	d.mu.Unlock()

	d.wg.Add(1)
	go d.drain(s)
	d.logger.Debug("subscription added", "name", name, "queue", cap(s.queue))
	return s, nil
}

// Unsubscribe removes the subscription and stops its draining goroutine.
// In-flight queued frames are discarded. Safe to call while dispatch is in
// progress; calling it twice is a no-op.
func (d *Dispatcher) Unsubscribe(s *Subscription) {
	if s == nil || !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	d.mu.Lock()
	old := *d.subs.Load()
	next := make([]*Subscription, 0, len(old))
	for _, cur := range old {
		if cur != s {
			next = append(next, cur)
		}
	}
	d.subs.Store(&next)
	d.mu.Unlock()

	close(s.done)
	d.logger.Debug("subscription removed", "name", s.name, "dropped", s.Dropped())
}

// Dispatch delivers the frame to every subscription whose filter matches.
// It must be called from the single active producer context only, and never
// invokes consumer logic directly.
func (d *Dispatcher) Dispatch(f frame.Frame) {
	metrics.FrameDispatched()
	for _, s := range *d.subs.Load() {
		if !s.filter.Matches(f) {
			continue
		}
		s.enqueue(f)
	}
}

// enqueue places the frame on the subscription queue according to its
// overflow policy. Only the producer goroutine adds to the queue, so the
// DropOldest retry loop is bounded.
func (s *Subscription) enqueue(f frame.Frame) {
	switch s.policy {
	case Block:
		select {
		case s.queue <- f:
			metrics.FrameDelivered(s.name)
		case <-s.done:
		}
	default: // DropOldest
		for {
			select {
			case s.queue <- f:
				metrics.FrameDelivered(s.name)
				return
			default:
			}
			select {
			case <-s.queue:
				s.dropped.Add(1)
				metrics.FrameDropped(s.name)
			default:
			}
		}
	}
}

// drain pops frames in FIFO order and invokes the handler. Handler errors
// and panics are contained here and reported on the error channel.
func (d *Dispatcher) drain(s *Subscription) {
	defer d.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case f := <-s.queue:
			s.delivered.Add(1)
			if err := d.deliver(s, f); err != nil {
				metrics.DeliveryError(s.name)
				select {
				case d.errs <- DeliveryError{Subscription: s.name, Frame: f, Err: err}:
				default:
					d.logger.Warn("delivery error dropped, channel full",
						"subscription", s.name, "error", err)
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(s *Subscription, f frame.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(f)
}

// Close tears down all subscriptions and waits for their draining goroutines
// to exit. Subscribe fails with ErrClosed afterwards.
func (d *Dispatcher) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.mu.Lock()
	subs := *d.subs.Load()
	empty := make([]*Subscription, 0)
	d.subs.Store(&empty)
	d.mu.Unlock()

	for _, s := range subs {
		if s.cancelled.CompareAndSwap(false, true) {
			close(s.done)
		}
	}
	d.wg.Wait()
	d.logger.Debug("dispatcher closed", "subscriptions", len(subs))
}
