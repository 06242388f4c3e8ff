package canbus

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/canscope/canscope/internal/dispatch"
	"github.com/canscope/canscope/internal/metrics"
	"github.com/canscope/canscope/internal/tracebuf"
)

// Receiver pumps frames from an adapter into the dispatcher, and into the
// trace buffer when it holds the buffer's writer token. It is the single
// producer context while running. Stop is synchronous: once it returns, no
// further dispatch will occur from this receiver.
type Receiver struct {
	adapter    Adapter
	dispatcher *dispatch.Dispatcher
	writer     *tracebuf.Writer
	logger     *slog.Logger
	onError    func(error)

	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// NewReceiver creates a receiver. writer may be nil when traffic should be
// dispatched without being recorded; onError may be nil.
func NewReceiver(a Adapter, d *dispatch.Dispatcher, w *tracebuf.Writer, logger *slog.Logger, onError func(error)) *Receiver {
	return &Receiver{
		adapter:    a,
		dispatcher: d,
		writer:     w,
		logger:     logger,
		onError:    onError,
	}
}

// Start launches the receive loop. Starting a running receiver is a no-op.
func (r *Receiver) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
}

// Stop halts the receive loop and returns only once it has fully exited.
func (r *Receiver) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Receiver) loop(ctx context.Context) {
	defer close(r.done)
	r.logger.Info("receiver started")
	for {
		f, err := r.adapter.Recv(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				r.logger.Info("receiver stopped")
				return
			case errors.Is(err, ErrAdapterClosed):
				r.logger.Warn("adapter closed, receiver exiting")
				r.report(err)
				return
			default:
				// Bus faults are reported upward; the buffer and
				// dispatcher are left untouched.
				r.logger.Error("bus receive fault", "error", err)
				r.report(err)
				continue
			}
		}
		metrics.FrameReceived(f.Channel)
		if r.writer != nil {
			if _, err := r.writer.Append(f); err != nil {
				r.logger.Error("trace append failed", "error", err)
				r.report(err)
			}
		}
		r.dispatcher.Dispatch(f)
	}
}

func (r *Receiver) report(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
