package service

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the environment configuration for wiring a Service with its
// default collaborators: the PostgreSQL action log, the configuration
// service, the confirmation endpoint, and an optional Redis state cache.
type Env struct {
	// DatabaseURL is the PostgreSQL connection string for the action log.
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// ConfigURL is the base URL of the declaration configuration service.
	ConfigURL string `env:"CONFIG_URL,required,notEmpty"`

	// ConfirmURL is the base URL of the external confirmation endpoint.
	ConfirmURL string `env:"CONFIRM_URL,required,notEmpty"`

	// TokenSecret verifies bearer tokens.
	TokenSecret string `env:"TOKEN_SECRET,required,notEmpty"`

	// RedisAddr enables the Redis state cache when set.
	RedisAddr string `env:"REDIS_ADDR"`

	// ConfirmTimeout bounds one confirmation attempt.
	ConfirmTimeout time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"30s"`

	// ConfigTimeout bounds one configuration fetch.
	ConfigTimeout time.Duration `env:"CONFIG_TIMEOUT" envDefault:"10s"`

	// CacheTTL bounds how long a cached state may live.
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// FromEnv loads configuration from environment variables.
func FromEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
