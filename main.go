package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/canscope/canscope/cmd"
	"github.com/canscope/canscope/internal/api"
	"github.com/canscope/canscope/internal/canbus"
	"github.com/canscope/canscope/internal/config"
	"github.com/canscope/canscope/internal/events"
	"github.com/canscope/canscope/internal/logging"
	"github.com/canscope/canscope/internal/metrics"
	"github.com/canscope/canscope/internal/session"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Bus settings
	CanInterface string `help:"Bus adapter driver" default:"virtual" toml:"can.interface" env:"CAN_INTERFACE"`
	CanChannel   string `help:"Bus channel" default:"vcan0" toml:"can.channel" env:"CAN_CHANNEL"`
	CanBitrate   int    `help:"Bus bitrate" default:"500000" toml:"can.bitrate" env:"CAN_BITRATE"`
	CanFD        bool   `help:"Enable CAN FD" default:"false" toml:"can.fd" env:"CAN_FD"`
	CanName      string `help:"Connection display name" default:"" toml:"can.name" env:"CAN_NAME"`

	// Trace settings
	TraceCapacity int `help:"Trace buffer capacity in records" default:"100000" toml:"trace.capacity" env:"TRACE_CAPACITY"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingCanbus   string `help:"Bus adapter logging level" default:"info" toml:"logging.canbus" env:"LOGGING_CANBUS"`
	LoggingDispatch string `help:"Dispatcher logging level" default:"info" toml:"logging.dispatch" env:"LOGGING_DISPATCH"`
	LoggingPlayer   string `help:"Player logging level" default:"info" toml:"logging.player" env:"LOGGING_PLAYER"`
	LoggingSession  string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"api":      opts.LoggingAPI,
				"canbus":   opts.LoggingCanbus,
				"dispatch": opts.LoggingDispatch,
				"player":   opts.LoggingPlayer,
				"session":  opts.LoggingSession,
			},
		})
		logger := logging.GetLogger("main")

		// In-process event bus for SSE and control-plane notifications.
		eventBus := events.New()

		// Stream log entries to SSE clients through the event bus.
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		busConfig := canbus.Config{
			Interface: opts.CanInterface,
			Channel:   opts.CanChannel,
			Bitrate:   opts.CanBitrate,
			FD:        opts.CanFD,
			Name:      opts.CanName,
			Bus:       1,
		}
		sess := session.New(busConfig, opts.TraceCapacity, eventBus, logging.GetLogger("session"))

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Session:           sess,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		})

		// Hot-reload logging levels when the config file changes.
		watcher := config.NewConfigWatcher(opts.Config, func(path string) (logging.Config, error) {
			return config.LoadLoggingConfig(path), nil
		}, logging.GetLogger("config"))
		watcher.OnReload(func(cfg logging.Config) {
			for module, level := range cfg.Modules {
				logging.SetModuleLevel(module, level)
			}
			logger.Info("logging levels reloaded", "modules", len(cfg.Modules))
		})

		hooks.OnStart(func() {
			if err := watcher.Start(); err != nil {
				logger.Warn("config watcher unavailable", "error", err)
			}

			if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				logger.Warn("sd_notify failed", "error", err)
			} else if sent {
				logger.Debug("notified systemd of readiness")
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
				logger.Debug("sd_notify stopping failed", "error", err)
			}
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Debug("Error stopping config watcher", "error", stopErr)
			}
			sess.Close()
		})
	})

	cli.Root().Use = "canscope"
	cli.Root().AddCommand(cmd.CreateReplayCmd())
	cli.Root().AddCommand(cmd.CreateValidateCmd())

	cli.Run()
}
