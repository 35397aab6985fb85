// Package config defines the configuration structure for the klose-3xpay
// relay service. Configuration is loaded once at process initialization and
// is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup, with one deliberate exception: the postback shared
// secret is validated lazily by the relay so that webhook events that never
// reach delivery (ignored or non-paid events) do not require it.
package config

import (
	"time"

	"klose3xpay/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Gateway auth modes. They select which 3xpay API shape the service talks to.
const (
	AuthModeBearer  = "bearer"  // Authorization: Bearer <key>, /pix endpoints
	AuthModeKeypair = "keypair" // X-Api-Key/X-Api-Secret, /transaction endpoints
)

// Config is the top-level configuration struct for the relay service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"klose-3xpay-service"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Gateway  GatewayConfig
	Postback PostbackConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// GatewayConfig holds upstream 3xpay API credentials and tuning parameters.
type GatewayConfig struct {
	BaseURL string `envconfig:"THREEXPAY_BASE_URL" default:"https://api.3xpay.co" validate:"required,url"`

	// APIKey is the bearer token in bearer mode, or the key half of the
	// key/secret pair in keypair mode.
	APIKey    SecretString `envconfig:"THREEXPAY_API_KEY" validate:"required"`
	APISecret SecretString `envconfig:"THREEXPAY_API_SECRET"`

	AuthMode string        `envconfig:"THREEXPAY_AUTH_MODE" default:"bearer" validate:"oneof=bearer keypair"`
	Timeout  time.Duration `envconfig:"THREEXPAY_TIMEOUT" default:"15s"`
}

// PostbackConfig holds settings for postback delivery to Klose.
type PostbackConfig struct {
	URL string `envconfig:"KLOSE_POSTBACK_URL" default:"https://sgdzggbpcodevxwkypne.functions.supabase.co/payment-postback-3xpay" validate:"required,url"`

	// Secret and LegacySecret are the two recognized sources of the shared
	// secret sent in the X-3xPay-Service-Secret header; the first one present
	// wins. Neither is required at startup -- ResolveSecret reports the
	// failure when delivery is actually attempted.
	Secret       SecretString `envconfig:"KLOSE_POSTBACK_SECRET"`
	LegacySecret SecretString `envconfig:"THREEXPAY_SERVICE_SECRET"`

	AttemptTimeout time.Duration `envconfig:"POSTBACK_ATTEMPT_TIMEOUT" default:"10s"`
	MaxAttempts    int           `envconfig:"POSTBACK_MAX_ATTEMPTS" default:"3" validate:"min=1"`
}

// ResolveSecret returns the postback shared secret, preferring
// KLOSE_POSTBACK_SECRET over the legacy THREEXPAY_SERVICE_SECRET.
// Returns a configuration AppError if neither is set.
func (p PostbackConfig) ResolveSecret() (SecretString, error) {
	if p.Secret.Unmask() != "" {
		return p.Secret, nil
	}
	if p.LegacySecret.Unmask() != "" {
		return p.LegacySecret, nil
	}
	return "", types.NewAppError(
		types.ErrCodeConfigMissingSecret,
		"missing KLOSE_POSTBACK_SECRET (or THREEXPAY_SERVICE_SECRET)",
		nil,
	)
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
