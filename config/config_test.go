package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.MongoDatabase != "todotrack" {
		t.Fatalf("MongoDatabase = %q", cfg.MongoDatabase)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxRefreshTokens != 5 || cfg.BcryptCost != 10 {
		t.Fatalf("MaxRefreshTokens = %d, BcryptCost = %d", cfg.MaxRefreshTokens, cfg.BcryptCost)
	}
	if cfg.SweepInterval != 60*time.Second {
		t.Fatalf("SweepInterval = %v", cfg.SweepInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("RATE_LIMIT_REQUESTS", "50")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RateLimitRequests != 50 {
		t.Fatalf("RateLimitRequests = %d", cfg.RateLimitRequests)
	}
	if !cfg.Debug {
		t.Fatal("Debug not set")
	}
}

func TestLoadMissingMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "b")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing MONGO_URI")
	}
}

func TestLoadMissingSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing secrets")
	}
}

func TestLoadEqualSecretsRejected(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("ACCESS_TOKEN_SECRET", "same")
	t.Setenv("REFRESH_TOKEN_SECRET", "same")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for equal secrets")
	}
}

func TestLoadBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}
