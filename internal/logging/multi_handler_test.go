package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiHandlerFanout(t *testing.T) {
	var debugOut, infoOut bytes.Buffer
	debug := slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(newMultiHandler(debug, info))
	logger.Debug("buffer wrapped")
	logger.Info("capture started")

	if !strings.Contains(debugOut.String(), "buffer wrapped") {
		t.Errorf("debug handler missing debug record, output: %s", debugOut.String())
	}
	if strings.Contains(infoOut.String(), "buffer wrapped") {
		t.Errorf("info handler received debug record, output: %s", infoOut.String())
	}
	if !strings.Contains(debugOut.String(), "capture started") ||
		!strings.Contains(infoOut.String(), "capture started") {
		t.Error("info record not delivered to both handlers")
	}
}

func TestMultiHandlerSingleCollapses(t *testing.T) {
	h := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if got := newMultiHandler(h); got != slog.Handler(h) {
		t.Errorf("single-handler chain wrapped as %T, want the handler itself", got)
	}
}
