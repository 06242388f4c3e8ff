package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testOptions struct {
	Config      string
	Port        string  `toml:"server.port" env:"SERVER_PORT"`
	CanChannel  string  `toml:"can.channel" env:"CAN_CHANNEL"`
	CanBitrate  int     `toml:"can.bitrate" env:"CAN_BITRATE"`
	CanFD       bool    `toml:"can.fd" env:"CAN_FD"`
	PlayerSpeed float64 `toml:"player.speed" env:"PLAYER_SPEED"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"

[can]
channel = "vcan7"
bitrate = 250000
fd = true

[player]
speed = 2.5
`)

	opts := &testOptions{Config: path, Port: ":8091"}
	if err := LoadConfig(opts); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Port != ":9999" {
		t.Errorf("Port = %q, want :9999", opts.Port)
	}
	if opts.CanChannel != "vcan7" {
		t.Errorf("CanChannel = %q, want vcan7", opts.CanChannel)
	}
	if opts.CanBitrate != 250000 {
		t.Errorf("CanBitrate = %d, want 250000", opts.CanBitrate)
	}
	if !opts.CanFD {
		t.Error("CanFD = false, want true")
	}
	if opts.PlayerSpeed != 2.5 {
		t.Errorf("PlayerSpeed = %v, want 2.5", opts.PlayerSpeed)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[can]
channel = "vcan0"
bitrate = 125000
`)

	t.Setenv(EnvPrefix+"CAN_CHANNEL", "vcan9")
	t.Setenv(EnvPrefix+"CAN_BITRATE", "1000000")
	t.Setenv(EnvPrefix+"CAN_FD", "true")
	t.Setenv(EnvPrefix+"PLAYER_SPEED", "0.5")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.CanChannel != "vcan9" {
		t.Errorf("CanChannel = %q, want vcan9", opts.CanChannel)
	}
	if opts.CanBitrate != 1000000 {
		t.Errorf("CanBitrate = %d, want 1000000", opts.CanBitrate)
	}
	if !opts.CanFD {
		t.Error("CanFD = false, want true")
	}
	if opts.PlayerSpeed != 0.5 {
		t.Errorf("PlayerSpeed = %v, want 0.5", opts.PlayerSpeed)
	}
}

func TestMissingConfigFileIsNotFatal(t *testing.T) {
	opts := &testOptions{Config: "/nonexistent/config.toml", Port: ":8091"}
	if err := LoadConfig(opts); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Port != ":8091" {
		t.Errorf("Port = %q, want default :8091", opts.Port)
	}
}

func TestInvalidTOMLFails(t *testing.T) {
	path := writeConfig(t, "not [valid toml")
	opts := &testOptions{Config: path}
	if err := LoadConfig(opts); err == nil {
		t.Error("LoadConfig accepted invalid TOML")
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
canbus = "warn"
dispatch = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("Level/Format = %q/%q, want debug/json", cfg.Level, cfg.Format)
	}
	if cfg.Modules["canbus"] != "warn" || cfg.Modules["dispatch"] != "error" {
		t.Errorf("Modules = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("/nonexistent/config.toml")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %q/%q, want info/text", cfg.Level, cfg.Format)
	}
}
