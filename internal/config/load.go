package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load applies defaults, then an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("STORE_DRIVER", &c.StoreDriver)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("JWT_SECRET", &c.JWTSecret)
	str("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v, ok := lookup("ACCEPT_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCEPT_RETRIES: %w", err)
		}
		c.AcceptRetries = n
	}
	if v, ok := lookup("MUTUAL_LEVELS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MUTUAL_LEVELS: %w", err)
		}
		c.MutualLevels = b
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":      &c.TokenTTL,
		"ACCEPT_BACKOFF": &c.AcceptBackoff,
		"ACCEPT_TIMEOUT": &c.AcceptTimeout,
		"SWIPE_IDLE_TTL": &c.SwipeIdle,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

// Validate rejects configurations the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AcceptRetries < 0 {
		return fmt.Errorf("ACCEPT_RETRIES must not be negative")
	}
	return nil
}
