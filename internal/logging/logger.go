// Package logging provides per-module slog loggers with runtime-adjustable
// levels, journald integration and an in-memory ring buffer of recent
// entries for streaming to API clients.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex           sync.RWMutex
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	isInitialized   bool
	logBuffer       *RingBuffer
	logCallback     LogCallback
)

// Initialize sets up the logging system and recreates any loggers handed out
// before initialization so they pick up the full handler chain.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	globalLevelVar := &slog.LevelVar{}
	globalLevelVar.Set(parseLevel(config.Level))
	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// GetLogger returns the logger for a module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, ok := moduleLoggers[module]; ok {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(moduleLevel(globalConfig, module))

	format := "text"
	if isInitialized {
		format = globalConfig.Format
	}
	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetModuleLevel adjusts a module's level at runtime. Unknown modules are
// ignored; used by the config hot-reload path.
func SetModuleLevel(module, level string) {
	mutex.RLock()
	defer mutex.RUnlock()
	if levelVar, ok := moduleLevelVars[module]; ok {
		levelVar.Set(parseLevel(level))
	}
}

// GetBuffer returns the log ring buffer for reading historical logs. Nil
// before Initialize.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback sets a callback invoked for each new log entry. Used to
// publish log events to SSE clients without an import cycle.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

func moduleLevel(config Config, module string) slog.Level {
	level := parseLevel(config.Level)
	if levelStr, ok := config.Modules[module]; ok {
		level = parseLevel(levelStr)
	}
	return level
}

// createHandler builds the handler chain: stdout (text or JSON), journald
// when available, and the ring buffer for SSE streaming.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdoutHandler}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))
	return newMultiHandler(handlers...)
}

// parseLevel converts a string level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
