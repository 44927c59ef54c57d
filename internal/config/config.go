// Package config loads CLI defaults from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/prevalence/internal/journal"
)

// Config holds the environment configuration. Command-line flags override
// every field.
type Config struct {
	Journal     string     `env:"PREVALENCE_JOURNAL"      envDefault:"prevalence.jsonl"`
	Driver      string     `env:"PREVALENCE_DRIVER"       envDefault:"file"`
	RedisURL    string     `env:"PREVALENCE_REDIS_URL"`
	RedisStream string     `env:"PREVALENCE_REDIS_STREAM" envDefault:"prevalence:journal"`
	LogLevel    slog.Level `env:"PREVALENCE_LOG_LEVEL"    envDefault:"warn"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// JournalConfig returns the journal settings.
func (c Config) JournalConfig() journal.Config {
	return journal.Config{
		Driver:   c.Driver,
		Path:     c.Journal,
		RedisURL: c.RedisURL,
		Stream:   c.RedisStream,
	}
}
