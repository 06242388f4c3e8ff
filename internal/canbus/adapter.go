// Package canbus defines the bus adapter boundary: the interface the core
// consumes frames through, a driver registry, an in-memory virtual bus for
// development and tests, and the receive loop that feeds the dispatcher.
package canbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/canscope/canscope/internal/frame"
)

// ErrAdapterClosed is returned by adapter operations after Close.
var ErrAdapterClosed = errors.New("canbus: adapter closed")

// Config describes one bus connection.
type Config struct {
	Interface string `toml:"interface" json:"interface"`
	Channel   string `toml:"channel" json:"channel"`
	Bitrate   int    `toml:"bitrate" json:"bitrate"`
	FD        bool   `toml:"fd" json:"fd"`
	Name      string `toml:"name" json:"name"`
	Bus       uint8  `toml:"bus" json:"bus"`
}

// DisplayName returns the configured name or a fallback derived from the
// bus number.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("Connection%d", c.Bus)
}

// Adapter is a live bus connection. The core only consumes the frame stream
// it produces; payload semantics are never interpreted here.
type Adapter interface {
	// Recv blocks until a frame arrives, the context is cancelled, or the
	// adapter is closed.
	Recv(ctx context.Context) (frame.Frame, error)
	// Send transmits a frame on the bus.
	Send(f frame.Frame) error
	// Close shuts the connection down; a blocked Recv returns
	// ErrAdapterClosed.
	Close() error
}

// OpenFunc opens an adapter for a configuration.
type OpenFunc func(Config) (Adapter, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]OpenFunc)
)

// RegisterDriver makes an adapter implementation available under an
// interface name. Drivers register themselves from init.
func RegisterDriver(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// Open opens an adapter using the driver registered for cfg.Interface.
func Open(cfg Config) (Adapter, error) {
	driversMu.RLock()
	open, ok := drivers[cfg.Interface]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("canbus: unknown interface %q", cfg.Interface)
	}
	return open(cfg)
}

// Drivers returns the registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
