package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port     string `env:"PORT" envDefault:"3002"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis
	RedisURL string `env:"REDIS_URL,required"`

	// JWT (tokens issued by the auth provider, HS256)
	JWTHS256Secret      string `env:"JWT_HS256_SECRET,required"`    // Base64-encoded HMAC secret
	JWTAllowedIssuers   string `env:"JWT_ALLOWED_ISSUERS,required"` // CSV list of allowed issuers
	JWTAudience         string `env:"JWT_AUDIENCE" envDefault:"authenticated"`
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`

	// Auth provider admin API (user invitations)
	AuthAdminURL       string `env:"AUTH_ADMIN_URL"`
	AuthServiceRoleKey string `env:"AUTH_SERVICE_ROLE_KEY"`

	// OpenTelemetry
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"bmai-api"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`

	// Prometheus scrape endpoint; empty token leaves /metrics open
	MetricsToken string `env:"METRICS_TOKEN"`

	// Rate Limiting
	RateLimitPerPrincipalPerMin int `env:"RATE_LIMIT_PER_PRINCIPAL_PER_MIN" envDefault:"120"`

	// Sessions
	SessionIdleTimeout    time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SessionSweepInterval  time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	SessionRefreshWorkers int           `env:"SESSION_REFRESH_WORKERS" envDefault:"8"`
	SelectionTTL          time.Duration `env:"SELECTION_TTL" envDefault:"720h"`

	// Replay window for Idempotency-Key on writes
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWTHS256Secret == "" {
		return fmt.Errorf("JWT_HS256_SECRET is required")
	}
	if _, err := base64.StdEncoding.DecodeString(c.JWTHS256Secret); err != nil {
		return fmt.Errorf("JWT_HS256_SECRET must be valid base64: %w", err)
	}

	if len(c.GetAllowedIssuers()) == 0 {
		return fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	if c.JWTAudience == "" {
		return fmt.Errorf("JWT_AUDIENCE is required")
	}

	if c.JWTClockSkewSeconds < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW_SECONDS must be non-negative")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	if c.RateLimitPerPrincipalPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_PRINCIPAL_PER_MIN must be positive")
	}

	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be non-negative")
	}

	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}

	if c.SessionRefreshWorkers <= 0 {
		return fmt.Errorf("SESSION_REFRESH_WORKERS must be positive")
	}

	if c.AuthAdminURL != "" {
		u, err := url.Parse(c.AuthAdminURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("AUTH_ADMIN_URL must be an absolute URL")
		}
		if c.AuthServiceRoleKey == "" {
			return fmt.Errorf("AUTH_SERVICE_ROLE_KEY is required when AUTH_ADMIN_URL is set")
		}
	}

	return nil
}

// GetAllowedIssuers returns the list of allowed JWT issuers
func (c *Config) GetAllowedIssuers() []string {
	issuers := strings.Split(c.JWTAllowedIssuers, ",")
	result := make([]string, 0, len(issuers))
	for _, issuer := range issuers {
		trimmed := strings.TrimSpace(issuer)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// InvitesEnabled reports whether the auth provider admin API is configured.
func (c *Config) InvitesEnabled() bool {
	return c.AuthAdminURL != "" && c.AuthServiceRoleKey != ""
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
