package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradesim platform.
type Config struct {
	Storage Storage   `yaml:"storage"`
	Server  Server    `yaml:"server"`
	Alpaca  Alpaca    `yaml:"alpaca"`
	Logging Logging   `yaml:"logging"`
	Sim     SimConfig `yaml:"sim"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	StreamURL string `yaml:"stream_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimConfig defines simulation parameters shared by backtests and live runs.
type SimConfig struct {
	// SessionStart is the trading session open as HH:MM, used to anchor
	// candle buckets.
	SessionStart string `yaml:"session_start"`

	// MaxWindowBars bounds the candle history kept per symbol in live runs.
	MaxWindowBars int `yaml:"max_window_bars"`

	// DefaultBalance is the starting cash for runs that don't specify one.
	DefaultBalance float64 `yaml:"default_balance"`

	// DefaultTimeframe is the candle timeframe for runs that don't specify
	// one, e.g. "1Min" or "1Day".
	DefaultTimeframe string `yaml:"default_timeframe"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("ALPACA_STREAM_URL"); v != "" {
		cfg.Alpaca.StreamURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Sim.SessionStart == "" {
		cfg.Sim.SessionStart = "09:30"
	}
	if cfg.Sim.MaxWindowBars == 0 {
		cfg.Sim.MaxWindowBars = 500
	}
	if cfg.Sim.DefaultBalance == 0 {
		cfg.Sim.DefaultBalance = 10000
	}
	if cfg.Sim.DefaultTimeframe == "" {
		cfg.Sim.DefaultTimeframe = "1Min"
	}
}

// SessionStartOffset parses the configured session start into an offset from
// midnight.
func (c *SimConfig) SessionStartOffset() (time.Duration, error) {
	t, err := time.Parse("15:04", c.SessionStart)
	if err != nil {
		return 0, fmt.Errorf("parsing session_start %q: %w", c.SessionStart, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
