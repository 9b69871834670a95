package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LINKWELL_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.auth_token", typ: kString, env: "LINKWELL_SERVER_AUTH_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AuthToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AuthToken },
	},
	{
		key: "ai.base_url", typ: kString, env: "LINKWELL_AI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.AI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.BaseURL },
	},
	{
		key: "ai.api_key", typ: kString, env: "LINKWELL_AI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.AI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.APIKey },
	},
	{
		key: "ai.primary_model", typ: kString, env: "LINKWELL_AI_PRIMARY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.AI.PrimaryModel = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.PrimaryModel },
	},
	{
		key: "ai.fast_model", typ: kString, env: "LINKWELL_AI_FAST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.AI.FastModel = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.FastModel },
	},
	{
		key: "ai.timeout_secs", typ: kInt, env: "LINKWELL_AI_TIMEOUT_SECS",
		apply:   func(cfg *Config, v any) { cfg.AI.TimeoutSecs = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.TimeoutSecs },
	},
	{
		key: "ai.max_retries", typ: kInt, env: "LINKWELL_AI_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.AI.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.MaxRetries },
	},
	{
		key: "ai.base_delay_ms", typ: kInt, env: "LINKWELL_AI_BASE_DELAY_MS",
		apply:   func(cfg *Config, v any) { cfg.AI.BaseDelayMs = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.BaseDelayMs },
	},
	{
		key: "ai.temperature", typ: kFloat, env: "LINKWELL_AI_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.AI.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.AI.Temperature },
	},
	{
		key: "ai.summary_max_tokens", typ: kInt, env: "LINKWELL_AI_SUMMARY_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.AI.SummaryMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.SummaryMaxTokens },
	},
	{
		key: "ai.tags_max_tokens", typ: kInt, env: "LINKWELL_AI_TAGS_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.AI.TagsMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.TagsMaxTokens },
	},
	{
		key: "ai.category_max_tokens", typ: kInt, env: "LINKWELL_AI_CATEGORY_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.AI.CategoryMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.CategoryMaxTokens },
	},
	{
		key: "ai.search_max_tokens", typ: kInt, env: "LINKWELL_AI_SEARCH_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.AI.SearchMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.AI.SearchMaxTokens },
	},
	{
		key: "rate_limit.backend", typ: kString, env: "LINKWELL_RATE_LIMIT_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.RateLimit.Backend },
	},
	{
		key: "rate_limit.limit", typ: kInt, env: "LINKWELL_RATE_LIMIT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Limit = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.Limit },
	},
	{
		key: "rate_limit.window_secs", typ: kInt, env: "LINKWELL_RATE_LIMIT_WINDOW_SECS",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.WindowSecs = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.WindowSecs },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LINKWELL_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "queue.workers", typ: kInt, env: "LINKWELL_QUEUE_WORKERS",
		apply:   func(cfg *Config, v any) { cfg.Queue.Workers = v.(int) },
		extract: func(cfg Config) any { return cfg.Queue.Workers },
	},
	{
		key: "queue.poll_interval_ms", typ: kInt, env: "LINKWELL_QUEUE_POLL_INTERVAL_MS",
		apply:   func(cfg *Config, v any) { cfg.Queue.PollInterval = v.(int) },
		extract: func(cfg Config) any { return cfg.Queue.PollInterval },
	},
	{
		key: "log.level", typ: kString, env: "LINKWELL_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetFloat(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse number from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
