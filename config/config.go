// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultJWTSecret は開発用バックエンドと同じデフォルト署名鍵。
const DefaultJWTSecret = "defaultSecretKeyForDevelopmentOnlyChangeThisInProduction"

// Config はアプリケーション設定を表す。
type Config struct {
	DatabaseURL      string        `env:"DATABASE_URL" envDefault:"bd.db"`
	APIURL           string        `env:"HRCTL_API_URL" envDefault:"http://localhost:8080"`
	FrontendURL      string        `env:"HRCTL_FRONTEND_URL" envDefault:"http://localhost:4200"`
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"defaultSecretKeyForDevelopmentOnlyChangeThisInProduction"`
	JWTExpiration    time.Duration `env:"JWT_EXPIRATION" envDefault:"1h"`
	MigrationsDir    string        `env:"MIGRATIONS_DIR" envDefault:"./migrations"`
	Port             string        `env:"PORT" envDefault:"8080"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"INFO"`
	OtelEnabled      bool          `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OtelServiceName  string        `env:"OTEL_SERVICE_NAME" envDefault:"hrctl"`
	OtelSamplingRate float64       `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTExpiration <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRATION must be positive, got %s", cfg.JWTExpiration)
	}
	if cfg.OtelSamplingRate < 0 || cfg.OtelSamplingRate > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLING_RATE must be within [0, 1], got %v", cfg.OtelSamplingRate)
	}
	return &cfg, nil
}
