package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment override, e.g. RAPIDPUSH_API_KEYS.
const EnvPrefix = "RAPIDPUSH"

const (
	DefaultEndpoint  = "rapidpush.net/api"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "RapidPush Go-Library"
)

// Config defines the *single*, authoritative configuration of a client.
type Config struct {
	APIKeys        []string      `split_words:"true" validate:"required,min=1,dive,required"`
	Endpoint       string        `validate:"required,excludes=://"`
	DisableSSL     bool          `split_words:"true"`
	Timeout        time.Duration `validate:"gte=0"`
	UserAgent      string        `split_words:"true"`
	MetricsEnabled bool          `split_words:"true"`
}

var validate = validator.New()

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	// 2. Defaults
	cfg.APIKeys = cleanKeys(cfg.APIKeys)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	// 3. Final Validation
	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}

	logger.Debug("Configuration finalized and validated successfully",
		"endpoint", cfg.Endpoint,
		"api_key_count", len(cfg.APIKeys),
	)
	return cfg, nil
}

func cleanKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.StructField() {
		case "APIKeys":
			msgs = append(msgs, "api_keys is required (set via YAML or RAPIDPUSH_API_KEYS env var)")
		case "Endpoint":
			msgs = append(msgs, "endpoint must be host and path without a scheme")
		case "Timeout":
			msgs = append(msgs, "timeout must not be negative")
		default:
			msgs = append(msgs, fe.Error())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
