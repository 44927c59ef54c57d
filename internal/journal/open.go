package journal

import (
	"context"
	"fmt"
)

// Supported drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// DefaultStream is the Redis stream key used when none is configured.
const DefaultStream = "prevalence:journal"

// Config selects and configures a journal medium.
type Config struct {
	Driver   string // "file" (default), "sqlite" or "redis"
	Path     string // file or database path
	RedisURL string // redis://host:port/db
	Stream   string // Redis stream key
}

// Open creates the journal described by cfg.
func Open(ctx context.Context, cfg Config) (Journal, error) {
	switch cfg.Driver {
	case "", DriverFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file journal requires a path")
		}
		return NewFile(cfg.Path), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite journal requires a path")
		}
		return OpenSQLite(cfg.Path)
	case DriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis journal requires a URL")
		}
		stream := cfg.Stream
		if stream == "" {
			stream = DefaultStream
		}
		return OpenRedis(ctx, cfg.RedisURL, stream)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}
