package store

import (
	"fmt"
	"time"

	"github.com/ahrav/go-thurstone/internal/ports"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is "memory", "redis" or "sqlite". Empty means memory.
	Backend string
	// DSN is the Redis URL or SQLite file path.
	DSN    string
	TTL    time.Duration
	Prefix string
}

// Open creates the store described by cfg.
func Open(cfg Config) (ports.SessionStore, error) {
	switch cfg.Backend {
	case "", backendMemory:
		return NewMemoryStore(), nil
	case backendRedis:
		return NewRedisStore(cfg.DSN, RedisOptions{Prefix: cfg.Prefix, TTL: cfg.TTL})
	case backendSQLite:
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
