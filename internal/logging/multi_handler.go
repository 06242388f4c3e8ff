package logging

import (
	"context"
	"log/slog"
)

// multiHandler duplicates each record to every handler in the chain: stdout,
// journald when present, and the ring buffer feeding the log stream.
type multiHandler struct {
	chain []slog.Handler
}

// newMultiHandler combines a handler chain into one handler. A single-element
// chain is returned as-is.
func newMultiHandler(chain ...slog.Handler) slog.Handler {
	if len(chain) == 1 {
		return chain[0]
	}
	return &multiHandler{chain: chain}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.chain {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.chain {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	chain := make([]slog.Handler, len(m.chain))
	for i, h := range m.chain {
		chain[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{chain: chain}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	chain := make([]slog.Handler, len(m.chain))
	for i, h := range m.chain {
		chain[i] = h.WithGroup(name)
	}
	return &multiHandler{chain: chain}
}
