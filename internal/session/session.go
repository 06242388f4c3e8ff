// Package session owns the wiring between the bus adapter, the dispatcher,
// the trace buffer and the player, and enforces the single-producer and
// single-buffer-writer disciplines across them.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canscope/canscope/internal/canbus"
	"github.com/canscope/canscope/internal/dispatch"
	"github.com/canscope/canscope/internal/events"
	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/player"
	"github.com/canscope/canscope/internal/tracebuf"
	"github.com/canscope/canscope/internal/trc"
)

// ErrCaptureRunning is returned when an operation requires capture to be stopped.
var ErrCaptureRunning = errors.New("session: capture running")

// ErrCaptureStopped is returned by StopCapture when no capture is running.
var ErrCaptureStopped = errors.New("session: capture not running")

// ErrPlayerActive is returned when an operation requires the player to be stopped.
var ErrPlayerActive = errors.New("session: player active")

// ErrNoTrace is returned by player operations before a trace has been loaded.
var ErrNoTrace = errors.New("session: no trace loaded")

// Session coordinates one capture/replay workspace: a dispatcher, a trace
// buffer, at most one bus connection and one player. Exactly one of
// {receiver, player} may drive dispatch at a time, and the buffer writer
// token changes hands only through Session methods.
type Session struct {
	mu         sync.Mutex
	cfg        canbus.Config
	dispatcher *dispatch.Dispatcher
	buffer     *tracebuf.Buffer
	player     *player.Player
	bus        *events.Bus
	logger     *slog.Logger

	adapter      canbus.Adapter
	receiver     *canbus.Receiver
	captureWr    *tracebuf.Writer
	replayWr     atomic.Pointer[tracebuf.Writer]
	loaded       *trc.Trace
	loadedPath   string
	speed        float64
	stopErrDrain func()
}

// New creates a session. The event bus receives control-plane notifications;
// frame delivery to consumers goes through Dispatcher().
func New(cfg canbus.Config, capacity int, bus *events.Bus, logger *slog.Logger) *Session {
	s := &Session{
		cfg:        cfg,
		dispatcher: dispatch.New(logger),
		buffer:     tracebuf.New(capacity),
		bus:        bus,
		logger:     logger,
	}
	s.player = player.New(s.emitReplay, logger,
		player.WithStateHook(s.onPlayerState),
		player.WithErrorHook(func(err error) {
			logger.Error("playback error", "error", err)
		}),
	)

	done := make(chan struct{})
	s.stopErrDrain = func() { close(done) }
	go s.drainDeliveryErrors(done)

	// Feed live and replayed frames to SSE observers. A small queue with
	// the default drop-oldest policy keeps a slow observer harmless.
	s.dispatcher.Subscribe("events", dispatch.All(), func(f frame.Frame) error {
		bus.Publish(frameEvent(f))
		return nil
	}, dispatch.WithQueueSize(256))

	return s
}

// Dispatcher returns the frame dispatcher for consumer subscriptions.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Buffer returns the trace buffer for read-only snapshot access.
func (s *Session) Buffer() *tracebuf.Buffer { return s.buffer }

// Config returns the bus configuration.
func (s *Session) Config() canbus.Config { return s.cfg }

// StartCapture opens the bus adapter and begins recording live traffic into
// a fresh buffer session. It fails while a capture or a replay is running.
func (s *Session) StartCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiver != nil {
		return ErrCaptureRunning
	}
	if s.player.State() != player.Stopped {
		return ErrPlayerActive
	}
	if err := s.buffer.Clear(); err != nil {
		return fmt.Errorf("session: reset buffer: %w", err)
	}
	writer, err := s.buffer.AcquireWriter()
	if err != nil {
		return err
	}
	adapter, err := canbus.Open(s.cfg)
	if err != nil {
		writer.Release()
		return fmt.Errorf("session: open bus: %w", err)
	}

	s.adapter = adapter
	s.captureWr = writer
	s.receiver = canbus.NewReceiver(adapter, s.dispatcher, writer, s.logger, func(err error) {
		s.logger.Warn("bus fault", "error", err)
	})
	s.receiver.Start()

	now := time.Now().Format(time.RFC3339)
	s.bus.Publish(events.BusConnectedEvent{
		Connection: s.cfg.DisplayName(),
		Interface:  s.cfg.Interface,
		Channel:    s.cfg.Channel,
		Timestamp:  now,
	})
	s.bus.Publish(events.CaptureStartedEvent{Channel: s.cfg.Channel, Timestamp: now})
	s.logger.Info("capture started", "channel", s.cfg.Channel)
	return nil
}

// StopCapture halts the receive loop, releases the buffer writer token and
// closes the adapter. Once it returns no further frame will be dispatched
// from the bus.
func (s *Session) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiver == nil {
		return ErrCaptureStopped
	}
	s.receiver.Stop()
	s.receiver = nil
	s.captureWr.Release()
	s.captureWr = nil
	if err := s.adapter.Close(); err != nil {
		s.logger.Warn("adapter close failed", "error", err)
	}
	s.adapter = nil

	now := time.Now().Format(time.RFC3339)
	s.bus.Publish(events.CaptureStoppedEvent{
		Channel:   s.cfg.Channel,
		Records:   s.buffer.TotalWritten(),
		Timestamp: now,
	})
	s.bus.Publish(events.BusDisconnectedEvent{Connection: s.cfg.DisplayName(), Timestamp: now})
	s.logger.Info("capture stopped", "records", s.buffer.TotalWritten())
	return nil
}

// Capturing reports whether a live capture is running.
func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiver != nil
}

// Send transmits a frame on the open bus connection.
func (s *Session) Send(f frame.Frame) error {
	s.mu.Lock()
	adapter := s.adapter
	s.mu.Unlock()
	if adapter == nil {
		return ErrCaptureStopped
	}
	return adapter.Send(f)
}

// LoadTrace reads a TRC file and loads it into the player. Valid only while
// the player is stopped.
func (s *Session) LoadTrace(path string) (*trc.Trace, error) {
	trace, err := trc.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.player.Load(trace.Records); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.loaded = trace
	s.loadedPath = path
	s.mu.Unlock()

	s.bus.Publish(events.TraceLoadedEvent{
		Path:      path,
		Records:   len(trace.Records),
		Duration:  trace.Duration().Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return trace, nil
}

// Play starts or resumes replay at the given speed. Replay re-injects
// records into the dispatcher, so consumers see them exactly like live
// traffic; with capture set, the replayed stream is also recorded into a
// fresh buffer session.
func (s *Session) Play(speed float64, capture bool) error {
	s.mu.Lock()
	if s.receiver != nil {
		s.mu.Unlock()
		return ErrCaptureRunning
	}
	if s.loaded == nil {
		s.mu.Unlock()
		return ErrNoTrace
	}
	if capture && s.replayWr.Load() == nil {
		if err := s.buffer.Clear(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("session: reset buffer: %w", err)
		}
		writer, err := s.buffer.AcquireWriter()
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.replayWr.Store(writer)
	}
	s.speed = speed
	s.mu.Unlock()

	return s.player.Play(speed)
}

// Pause freezes the replay at the current position.
func (s *Session) Pause() error { return s.player.Pause() }

// Seek repositions the replay to the first record at or after target.
func (s *Session) Seek(target time.Duration) error { return s.player.Seek(target) }

// StopPlayback stops the replay and discards the cursor.
func (s *Session) StopPlayback() error { return s.player.Stop() }

// Player returns the replay engine.
func (s *Session) Player() *player.Player { return s.player }

// SaveTrace writes a point-in-time snapshot of the trace buffer to a TRC
// file. The buffer is not mutated; capture may continue while saving.
func (s *Session) SaveTrace(path string) (int, error) {
	records := s.buffer.Snapshot()
	start := s.buffer.StartTime()
	if start.IsZero() {
		start = time.Now()
	}
	if err := trc.WriteFile(path, start, records); err != nil {
		return 0, err
	}
	s.bus.Publish(events.TraceSavedEvent{
		Path:      path,
		Records:   len(records),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	s.logger.Info("trace saved", "path", path, "records", len(records))
	return len(records), nil
}

// Status describes the session for the control API.
type Status struct {
	Capturing      bool    `json:"capturing" doc:"Whether live capture is running"`
	Connection     string  `json:"connection" doc:"Connection display name"`
	Interface      string  `json:"interface" doc:"Adapter driver name"`
	Channel        string  `json:"channel" doc:"Bus channel"`
	BufferLen      int     `json:"buffer_len" doc:"Records currently in the trace buffer"`
	BufferCap      int     `json:"buffer_cap" doc:"Trace buffer capacity"`
	TotalWritten   uint64  `json:"total_written" doc:"Records appended this session, overwritten included"`
	PlayerState    string  `json:"player_state" doc:"Replay state"`
	PlayerPosition float64 `json:"player_position" doc:"Replay position in seconds"`
	LoadedTrace    string  `json:"loaded_trace,omitempty" doc:"Path of the loaded trace file"`
	LoadedRecords  int     `json:"loaded_records" doc:"Records loaded into the player"`
}

// Status returns a point-in-time view of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Capturing:      s.receiver != nil,
		Connection:     s.cfg.DisplayName(),
		Interface:      s.cfg.Interface,
		Channel:        s.cfg.Channel,
		BufferLen:      s.buffer.Len(),
		BufferCap:      s.buffer.Capacity(),
		TotalWritten:   s.buffer.TotalWritten(),
		PlayerState:    s.player.State().String(),
		PlayerPosition: s.player.Position().Seconds(),
		LoadedTrace:    s.loadedPath,
	}
	if s.loaded != nil {
		st.LoadedRecords = len(s.loaded.Records)
	}
	return st
}

// Close tears the session down: capture, playback, subscriptions.
func (s *Session) Close() {
	if s.Capturing() {
		_ = s.StopCapture()
	}
	_ = s.player.Stop()
	if w := s.replayWr.Swap(nil); w != nil {
		w.Release()
	}
	s.stopErrDrain()
	s.dispatcher.Close()
	s.logger.Info("session closed")
}

// emitReplay is the player's emission target: the replay goroutine is the
// single producer context while playing.
func (s *Session) emitReplay(f frame.Frame) {
	if w := s.replayWr.Load(); w != nil {
		if _, err := w.Append(f); err != nil {
			s.logger.Error("replay capture append failed", "error", err)
		}
	}
	s.dispatcher.Dispatch(f)
}

// onPlayerState publishes state transitions and releases the replay-capture
// writer when playback returns to stopped.
func (s *Session) onPlayerState(st player.State) {
	if st == player.Stopped {
		if w := s.replayWr.Swap(nil); w != nil {
			w.Release()
		}
	}
	s.mu.Lock()
	speed := s.speed
	s.mu.Unlock()
	s.bus.Publish(events.PlayerStateChangedEvent{
		State:     st.String(),
		Position:  s.player.Position().Seconds(),
		Speed:     speed,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// drainDeliveryErrors forwards dispatcher delivery faults to the event bus.
func (s *Session) drainDeliveryErrors(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case derr := <-s.dispatcher.Errors():
			s.logger.Warn("subscriber delivery fault",
				"subscription", derr.Subscription, "error", derr.Err)
			s.bus.Publish(events.DeliveryErrorEvent{
				Subscription: derr.Subscription,
				Error:        derr.Err.Error(),
				FrameID:      derr.Frame.IDString(),
				Timestamp:    time.Now().Format(time.RFC3339),
			})
		}
	}
}

// frameEvent converts a frame for SSE observers.
func frameEvent(f frame.Frame) events.FrameEvent {
	data := f.DataString()
	if f.IsError() {
		data = f.ErrKind.String()
	}
	return events.FrameEvent{
		ID:        f.IDString(),
		Dir:       f.Dir.String(),
		Kind:      f.Type(),
		DLC:       f.DLC(),
		Data:      data,
		Channel:   f.Channel,
		Timestamp: f.Timestamp.Format(time.RFC3339Nano),
	}
}
