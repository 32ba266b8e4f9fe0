// Package config loads service settings: built-in defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything cmd/server needs to wire the service.
type Config struct {
	Port    string `yaml:"port"`
	LogMode string `yaml:"log_mode"`

	// DatabaseURL selects the Postgres store.  Empty means in-memory.
	DatabaseURL   string `yaml:"database_url"`
	NotifyChannel string `yaml:"notify_channel"`

	// OpenAIAPIKey empty disables summary generation.
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIModel   string  `yaml:"openai_model"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
	Temperature   float32 `yaml:"temperature"`

	AttemptTimeout time.Duration `yaml:"-"`
	TimeoutSeconds int           `yaml:"generation_timeout_seconds"`

	MaxBodyBytes       int64 `yaml:"max_body_bytes"`
	RateLimitPerMinute int   `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int   `yaml:"rate_limit_burst"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Port:               "8080",
		LogMode:            "dev",
		NotifyChannel:      "summary_updates",
		OpenAIModel:        "gpt-4o-mini",
		Temperature:        0.2,
		TimeoutSeconds:     45,
		MaxBodyBytes:       50000,
		RateLimitPerMinute: 10,
		RateLimitBurst:     10,
	}
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Defaults()

	if path := getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal %s: %w", path, err)
		}
	}

	str := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(&cfg.Port, "PORT")
	str(&cfg.LogMode, "LOG_MODE")
	str(&cfg.DatabaseURL, "DATABASE_URL")
	str(&cfg.NotifyChannel, "POSTGRES_NOTIFY_CHANNEL")
	str(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	str(&cfg.OpenAIModel, "OPENAI_MODEL_SUMMARY")
	str(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")

	ints := []struct {
		key string
		dst *int
	}{
		{"GENERATION_TIMEOUT_SECONDS", &cfg.TimeoutSeconds},
		{"RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute},
		{"RATE_LIMIT_BURST", &cfg.RateLimitBurst},
	}
	for _, it := range ints {
		v := strings.TrimSpace(getenv(it.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}
	if v := strings.TrimSpace(getenv("MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := strings.TrimSpace(getenv("OPENAI_TEMPERATURE")); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return Config{}, fmt.Errorf("OPENAI_TEMPERATURE: %w", err)
		}
		cfg.Temperature = float32(f)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.AttemptTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.TimeoutSeconds <= 0:
		return fmt.Errorf("generation timeout must be positive, got %d", c.TimeoutSeconds)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	case c.RateLimitPerMinute <= 0:
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimitPerMinute)
	case c.RateLimitBurst <= 0:
		return fmt.Errorf("rate limit burst must be positive, got %d", c.RateLimitBurst)
	}
	return nil
}

// GenerationEnabled reports whether an OpenAI key is configured.
func (c Config) GenerationEnabled() bool { return c.OpenAIAPIKey != "" }
