package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	DBDriver        string        `env:"DB_DRIVER" envDefault:"mysql"`
	DBDSN           string        `env:"DB_DSN" envDefault:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	DBConnLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBSlowThreshold time.Duration `env:"DB_SLOW_THRESHOLD" envDefault:"200ms"`
	ResetDB         bool          `env:"RESET_DB" envDefault:"false"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me"`

	// VoteLock selects how concurrent casts on one (user, post) pair are
	// serialized: "local" for a process-wide mutex, "redis" for a lock shared
	// by every server process.
	VoteLock    string        `env:"VOTE_LOCK" envDefault:"local"`
	VoteLockTTL time.Duration `env:"VOTE_LOCK_TTL" envDefault:"5s"`

	// LoaderWait is how long a batch loader collects keys before flushing on
	// its own. Zero flushes only when a result is first requested.
	LoaderWait time.Duration `env:"LOADER_WAIT" envDefault:"0s"`
	// LoaderMaxBatch caps the keys of one grouped lookup. Zero is unbounded.
	LoaderMaxBatch int `env:"LOADER_MAX_BATCH" envDefault:"0"`

	SwaggerHost string `env:"SWAGGER_HOST"`
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LoaderMaxBatch < 0 {
		return nil, fmt.Errorf("LOADER_MAX_BATCH must not be negative, got %d", cfg.LoaderMaxBatch)
	}
	switch cfg.VoteLock {
	case "local", "redis":
	default:
		return nil, fmt.Errorf("VOTE_LOCK must be local or redis, got %q", cfg.VoteLock)
	}
	return cfg, nil
}
