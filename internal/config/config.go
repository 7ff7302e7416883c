// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/caarlos0/env/v11"
)

// Env holds the configuration values for the application.
type Env struct {
	AWS       AWSConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Logging   LoggingConfig

	// Store selects the persistence backend: dynamodb or memory.
	Store string `env:"STORE" envDefault:"dynamodb"`
}

// AWSConfig describes the AWS resources the service uses.
type AWSConfig struct {
	Region            string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint          string `env:"AWS_ENDPOINT_URL"` // e.g. http://localstack:4566
	Bucket            string `env:"S3_BUCKET"`
	Table             string `env:"DDB_TABLE"`
	PricingFunction   string `env:"PRICING_FUNCTION"`
	PresignTTLSeconds int    `env:"PRESIGN_TTL_SECONDS" envDefault:"300"`
}

// PresignTTL is the lifetime of presigned URLs.
func (a AWSConfig) PresignTTL() time.Duration {
	return time.Duration(a.PresignTTLSeconds) * time.Second
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
	// DocumentsBaseURL is where upload targets point when STORE=memory; the
	// server itself serves it.
	DocumentsBaseURL string `env:"DOCUMENTS_BASE_URL" envDefault:"http://localhost:8080/dev/storage"`
}

// AuthConfig controls token issuance and request authentication.
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	DevBypassAuth bool          `env:"DEV_BYPASS_AUTH"`
}

// LifecycleConfig holds the configurable transition-table entries.
type LifecycleConfig struct {
	RenewAllowedFrom []string `env:"RENEW_ALLOWED_FROM" envDefault:"ACTIVE" envSeparator:","`
}

// RenewFrom parses RenewAllowedFrom into policy statuses.
func (l LifecycleConfig) RenewFrom() ([]models.PolicyStatus, error) {
	out := make([]models.PolicyStatus, 0, len(l.RenewAllowedFrom))
	for _, raw := range l.RenewAllowedFrom {
		s := models.PolicyStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if s == "" {
			continue
		}
		if !s.Valid() {
			return nil, fmt.Errorf("RENEW_ALLOWED_FROM: unknown status %q", raw)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // text|json
}

// ClientConfig configures the operator CLI.
type ClientConfig struct {
	APIURL      string        `env:"OPS_API_URL" envDefault:"http://localhost:8080"`
	QuoteURL    string        `env:"OPS_QUOTE_URL" envDefault:"http://localhost:8081"`
	SessionFile string        `env:"OPS_SESSION_FILE"`
	Timeout     time.Duration `env:"OPS_TIMEOUT" envDefault:"30s"`
}

// Load parses the environment into an Env.
func Load() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// MustLoad reads the environment variables and panics on malformed values.
func MustLoad() Env {
	e, err := Load()
	if err != nil {
		panic(err)
	}
	return e
}

// LoadClient parses the CLI configuration.
func LoadClient() (ClientConfig, error) {
	var c ClientConfig
	if err := env.Parse(&c); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// ValidateServer checks the settings the API server cannot run without.
func (e Env) ValidateServer() error {
	if e.Auth.JWTSecret == "" {
		return fmt.Errorf("missing env JWT_SECRET")
	}
	if _, err := e.Lifecycle.RenewFrom(); err != nil {
		return err
	}
	switch e.Store {
	case "memory":
		return nil
	case "dynamodb":
		return e.requireAWS()
	default:
		return fmt.Errorf("STORE must be dynamodb or memory, got %q", e.Store)
	}
}

// ValidateWorker checks the settings the Lambda workers need.
func (e Env) ValidateWorker() error {
	return e.requireAWS()
}

func (e Env) requireAWS() error {
	if e.AWS.Table == "" {
		return fmt.Errorf("missing env DDB_TABLE")
	}
	if e.AWS.Bucket == "" {
		return fmt.Errorf("missing env S3_BUCKET")
	}
	return nil
}
