package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "tradesim-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "APCA_API_KEY_ID",
		"APCA_API_SECRET_KEY", "DATA_DIR", "SQLITE_PATH", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/tradesim/data"
  sqlite_path: "/tmp/tradesim/tradesim.db"
server:
  host: "127.0.0.1"
  port: 9000
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  stream_url: "wss://stream.data.alpaca.markets"
logging:
  level: "debug"
  format: "json"
sim:
  session_start: "09:30"
  max_window_bars: 250
  default_balance: 25000
  default_timeframe: "5Min"
`)

	clearEnvOverrides(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/tradesim/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/tradesim/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/tradesim/tradesim.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/tradesim/tradesim.db")
	}

	// -- Server --
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q", cfg.Alpaca.APISecret, "test-secret")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	// -- Sim --
	if cfg.Sim.MaxWindowBars != 250 {
		t.Errorf("Sim.MaxWindowBars = %d, want %d", cfg.Sim.MaxWindowBars, 250)
	}
	if cfg.Sim.DefaultBalance != 25000 {
		t.Errorf("Sim.DefaultBalance = %f, want %f", cfg.Sim.DefaultBalance, 25000.0)
	}
	if cfg.Sim.DefaultTimeframe != "5Min" {
		t.Errorf("Sim.DefaultTimeframe = %q, want %q", cfg.Sim.DefaultTimeframe, "5Min")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/tradesim/data"
`)

	clearEnvOverrides(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
	if cfg.Sim.SessionStart != "09:30" {
		t.Errorf("Sim.SessionStart = %q, want default 09:30", cfg.Sim.SessionStart)
	}
	if cfg.Sim.DefaultTimeframe != "1Min" {
		t.Errorf("Sim.DefaultTimeframe = %q, want default 1Min", cfg.Sim.DefaultTimeframe)
	}
	if cfg.Sim.DefaultBalance != 10000 {
		t.Errorf("Sim.DefaultBalance = %f, want default 10000", cfg.Sim.DefaultBalance)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	clearEnvOverrides(t)
	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("DATA_DIR", "/env/data")
	defer os.Unsetenv("ALPACA_API_KEY")
	defer os.Unsetenv("DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
}

func TestSessionStartOffset(t *testing.T) {
	sc := SimConfig{SessionStart: "09:30"}
	got, err := sc.SessionStartOffset()
	if err != nil {
		t.Fatalf("SessionStartOffset failed: %v", err)
	}
	if want := 9*time.Hour + 30*time.Minute; got != want {
		t.Errorf("SessionStartOffset() = %v, want %v", got, want)
	}

	sc.SessionStart = "half past nine"
	if _, err := sc.SessionStartOffset(); err == nil {
		t.Error("malformed session start accepted, want error")
	}
}
