// Package player replays a recorded frame sequence through a dispatch target
// at scaled real time, driven by a cancellable virtual clock. To downstream
// consumers a replay is indistinguishable from live traffic.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/metrics"
	"github.com/canscope/canscope/internal/tracebuf"
)

// State is the player lifecycle state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "stopped"
}

// SpeedMax requests back-to-back emission with zero inter-frame delay.
var SpeedMax = math.Inf(1)

// StateError reports a rejected state transition; the player state is
// unchanged when it is returned.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("player: %s not valid in state %s", e.Op, e.State)
}

// PlaybackError reports a corrupt record encountered mid-replay. The player
// transitions to Stopped and is resumable only via a fresh Load.
type PlaybackError struct {
	Index int
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("player: record %d: %v", e.Index, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// ErrInvalidSpeed is returned by Play for non-positive speed multipliers.
var ErrInvalidSpeed = errors.New("player: speed must be positive")

// Emitter receives replayed frames. Typically dispatch.Dispatcher.Dispatch;
// the player's emission goroutine is the single producer context.
type Emitter func(frame.Frame)

// Player is the replay engine. All exported methods are safe for concurrent
// use; the emission loop runs on its own goroutine and suspends only on its
// cancellable virtual-clock timer.
type Player struct {
	mu      sync.Mutex
	state   State
	records []tracebuf.Record
	cursor  int
	speed   float64
	emit    Emitter
	onState func(State)
	onError func(error)
	quit    chan struct{}
	done    chan struct{}
	logger  *slog.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithStateHook registers a callback invoked after every state change.
func WithStateHook(fn func(State)) Option {
	return func(p *Player) { p.onState = fn }
}

// WithErrorHook registers a callback invoked when playback aborts on a
// corrupt record.
func WithErrorHook(fn func(error)) Option {
	return func(p *Player) { p.onError = fn }
}

// New creates a stopped player emitting to emit.
func New(emit Emitter, logger *slog.Logger, opts ...Option) *Player {
	p := &Player{
		emit:   emit,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the offset of the next record to be emitted, or the trace
// duration when the cursor is past the end.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	if len(p.records) == 0 {
		return 0
	}
	if p.cursor >= len(p.records) {
		return p.records[len(p.records)-1].Offset
	}
	return p.records[p.cursor].Offset
}

// Len returns the number of loaded records.
func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Load establishes the record sequence and resets the cursor. Valid only
// from Stopped. Offsets must be non-decreasing; a violation is rejected here
// rather than surfacing mid-replay.
func (p *Player) Load(records []tracebuf.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Stopped {
		return &StateError{Op: "load", State: p.state}
	}
	for i := 1; i < len(records); i++ {
		if records[i].Offset < records[i-1].Offset {
			return &PlaybackError{Index: i, Err: fmt.Errorf(
				"offset %v precedes %v", records[i].Offset, records[i-1].Offset)}
		}
	}
	p.records = records
	p.cursor = 0
	p.logger.Info("trace loaded", "records", len(records))
	return nil
}

// Play starts or resumes emission at the given positive speed multiplier
// (use SpeedMax for zero inter-frame delay). Valid from Stopped or Paused.
func (p *Player) Play(speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Playing {
		return &StateError{Op: "play", State: p.state}
	}
	if speed <= 0 {
		return ErrInvalidSpeed
	}
	if p.cursor >= len(p.records) {
		p.cursor = 0
	}
	p.speed = speed
	p.startLocked()
	return nil
}

// startLocked spins up the emission loop. Caller holds p.mu.
func (p *Player) startLocked() {
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	p.setStateLocked(Playing)
	go p.run(p.records, p.cursor, p.speed, p.quit, p.done)
}

// Pause freezes the virtual clock at the current position. Valid from
// Playing. When Pause returns no further record will be emitted until Play.
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.state != Playing {
		defer p.mu.Unlock()
		return &StateError{Op: "pause", State: p.state}
	}
	quit, done := p.quit, p.done
	p.mu.Unlock()

	close(quit)
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Playing {
		p.setStateLocked(Paused)
	}
	return nil
}

// Seek repositions the cursor at the first record with offset >= target and
// recomputes the virtual clock origin. Records in the skipped range are not
// emitted. Valid from Playing or Paused.
func (p *Player) Seek(target time.Duration) error {
	p.mu.Lock()
	if p.state == Stopped {
		defer p.mu.Unlock()
		return &StateError{Op: "seek", State: p.state}
	}

	wasPlaying := p.state == Playing
	quit, done := p.quit, p.done
	p.mu.Unlock()

	if wasPlaying {
		close(quit)
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = sort.Search(len(p.records), func(i int) bool {
		return p.records[i].Offset >= target
	})
	metrics.PlayerPosition(p.positionLocked().Seconds())
	if wasPlaying && p.state == Playing {
		p.quit = make(chan struct{})
		p.done = make(chan struct{})
		go p.run(p.records, p.cursor, p.speed, p.quit, p.done)
	}
	return nil
}

// Stop cancels any pending timer and discards the cursor. Valid from any
// state; once Stop returns, no further record is emitted for this session.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.state == Stopped {
		defer p.mu.Unlock()
		return nil
	}
	playing := p.state == Playing
	quit, done := p.quit, p.done
	p.mu.Unlock()

	if playing {
		close(quit)
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
	p.setStateLocked(Stopped)
	return nil
}

// run is the emission loop. It owns the virtual clock: each record is due at
// its recorded offset divided by speed, measured in real time from the record
// the cursor pointed to when the loop started.
func (p *Player) run(records []tracebuf.Record, start int, speed float64, quit, done chan struct{}) {
	defer close(done)

	if start >= len(records) {
		p.finish(quit, nil)
		return
	}

	origin := time.Now()
	originOffset := records[start].Offset
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for i := start; i < len(records); i++ {
		rec := records[i]
		if err := rec.Frame.Validate(); err != nil {
			p.finish(quit, &PlaybackError{Index: i, Err: err})
			return
		}

		var delay time.Duration
		if !math.IsInf(speed, 1) {
			due := time.Duration(float64(rec.Offset-originOffset) / speed)
			delay = due - time.Since(origin)
		}
		if delay > 0 {
			timer.Reset(delay)
			select {
			case <-quit:
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-quit:
				return
			default:
			}
		}

		p.emit(rec.Frame)
		metrics.PlayerPosition(rec.Offset.Seconds())

		p.mu.Lock()
		if p.quit == quit {
			p.cursor = i + 1
		}
		p.mu.Unlock()
	}

	p.finish(quit, nil)
}

// finish moves the player to Stopped after the last record, unless the loop
// was already superseded by Pause/Seek/Stop.
func (p *Player) finish(quit chan struct{}, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quit != quit || p.state != Playing {
		return
	}
	select {
	case <-quit:
		// A control call is tearing this loop down and owns the next state.
		return
	default:
	}
	p.cursor = 0
	p.setStateLocked(Stopped)
	if err != nil {
		p.logger.Error("playback aborted", "error", err)
		if p.onError != nil {
			go p.onError(err)
		}
	} else {
		p.logger.Info("playback finished")
	}
}

// setStateLocked updates state, metrics and the state hook. Caller holds p.mu.
func (p *Player) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.state = s
	metrics.PlayerState(int(s))
	p.logger.Debug("player state", "state", s.String())
	if p.onState != nil {
		go p.onState(s)
	}
}
