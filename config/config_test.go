package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DatabaseURL != "bd.db" {
		t.Errorf("want DatabaseURL bd.db, got %s", cfg.DatabaseURL)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("want APIURL http://localhost:8080, got %s", cfg.APIURL)
	}
	if cfg.JWTSecret != DefaultJWTSecret {
		t.Errorf("want default secret, got %s", cfg.JWTSecret)
	}
	if cfg.JWTExpiration != time.Hour {
		t.Errorf("want JWTExpiration 1h, got %s", cfg.JWTExpiration)
	}
	if cfg.OtelEnabled {
		t.Error("want OtelEnabled=false by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "/tmp/other.db")
	t.Setenv("JWT_EXPIRATION", "15m")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DatabaseURL != "/tmp/other.db" {
		t.Errorf("want DatabaseURL /tmp/other.db, got %s", cfg.DatabaseURL)
	}
	if cfg.JWTExpiration != 15*time.Minute {
		t.Errorf("want JWTExpiration 15m, got %s", cfg.JWTExpiration)
	}
	if !cfg.OtelEnabled {
		t.Error("want OtelEnabled=true")
	}
}

func TestLoad_InvalidSamplingRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATE", "1.5")

	if _, err := Load(); err == nil {
		t.Error("expected error for sampling rate 1.5, got nil")
	}
}

func TestLoad_InvalidExpiration(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "0s")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero expiration, got nil")
	}
}
