// Package config loads runtime settings once at startup. The resulting
// Config is never mutated after Load returns; components receive it (or the
// fields they need) through their constructors.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting for the service.
type Config struct {
	ListenAddr string
	Debug      bool

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	MaxRefreshTokens   int

	SweepInterval time.Duration

	RateLimitWindow   time.Duration
	RateLimitRequests int

	BcryptCost int
}

// Load reads configuration from the environment, applying defaults where a
// variable is unset. It fails when a required secret is missing or a value
// cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        ":8080",
		MongoDatabase:     "todotrack",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		MaxRefreshTokens:  5,
		SweepInterval:     60 * time.Second,
		RateLimitWindow:   time.Minute,
		RateLimitRequests: 20,
		BcryptCost:        10,
	}

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		cfg.Debug = dbg
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		cfg.ListenAddr = ":" + v
	}

	cfg.MongoURI = os.Getenv("MONGO_URI")
	if cfg.MongoURI == "" {
		return nil, errors.New("missing MONGO_URI")
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.AccessTokenSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	cfg.RefreshTokenSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, errors.New("missing ACCESS_TOKEN_SECRET or REFRESH_TOKEN_SECRET")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	var err error
	if cfg.AccessTokenTTL, err = envDur("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = envDur("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = envDur("SOCKET_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDur("RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.MaxRefreshTokens, err = envInt("MAX_REFRESH_TOKENS", cfg.MaxRefreshTokens); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = envInt("RATE_LIMIT_REQUESTS", cfg.RateLimitRequests); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = envInt("BCRYPT_COST", cfg.BcryptCost); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envDur(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return d, nil
}

func envInt(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}
