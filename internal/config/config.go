// Package config loads linkwell configuration from a JSON file backend
// with LINKWELL_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server    ServerConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port      int
	AuthToken string
}

type AIConfig struct {
	BaseURL      string
	APIKey       string
	PrimaryModel string
	FastModel    string
	TimeoutSecs  int
	MaxRetries   int
	BaseDelayMs  int
	Temperature  float64

	// Per-operation completion token caps.
	SummaryMaxTokens  int
	TagsMaxTokens     int
	CategoryMaxTokens int
	SearchMaxTokens   int
}

type RateLimitConfig struct {
	// Backend selects the limiter implementation: "memory", "sqlite",
	// or "off".
	Backend    string
	Limit      int
	WindowSecs int
}

type StorageConfig struct {
	DataDir string
}

type QueueConfig struct {
	Workers      int
	PollInterval int // milliseconds
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		AI: AIConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			PrimaryModel: "anthropic/claude-sonnet-4",
			FastModel:    "openai/gpt-4o-mini",
			TimeoutSecs:  30,
			MaxRetries:   3,
			BaseDelayMs:  500,
			Temperature:  0.3,

			SummaryMaxTokens:  256,
			TagsMaxTokens:     200,
			CategoryMaxTokens: 150,
			SearchMaxTokens:   600,
		},
		RateLimit: RateLimitConfig{
			Backend:    "sqlite",
			Limit:      20,
			WindowSecs: 60,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Queue: QueueConfig{
			Workers:      2,
			PollInterval: 500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/linkwell/config.json, then applies LINKWELL_*
// environment overrides. A missing API key is not an error here: the
// completion client reports missing credentials on first use, so
// read-only commands still work without one.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.RateLimit.Backend {
	case "memory", "sqlite", "off":
	default:
		return fmt.Errorf("invalid rate_limit.backend %q: want memory, sqlite, or off", c.RateLimit.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("invalid rate_limit.limit %d: must be positive", c.RateLimit.Limit)
	}
	if c.RateLimit.WindowSecs <= 0 {
		return fmt.Errorf("invalid rate_limit.window_secs %d: must be positive", c.RateLimit.WindowSecs)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue.workers %d: must be positive", c.Queue.Workers)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		return fmt.Errorf("invalid ai.temperature %g: must be in [0, 1]", c.AI.Temperature)
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "linkwell-data"
		}
	}
	return filepath.Join(dir, "linkwell")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "linkwell", "config.json")
}
