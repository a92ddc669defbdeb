package config

import (
	"log/slog"
	"time"
)

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	APIKeys        []string      `yaml:"api_keys"`
	Endpoint       string        `yaml:"endpoint"`
	DisableSSL     bool          `yaml:"disable_ssl"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		Endpoint:       baseCfg.Endpoint,
		DisableSSL:     baseCfg.DisableSSL,
		Timeout:        baseCfg.Timeout,
		UserAgent:      baseCfg.UserAgent,
		MetricsEnabled: baseCfg.MetricsEnabled,
	}
	if len(baseCfg.APIKeys) > 0 {
		cfg.APIKeys = append([]string(nil), baseCfg.APIKeys...)
	}

	logger.Debug("YAML config mapping complete",
		"endpoint", cfg.Endpoint,
		"disable_ssl", cfg.DisableSSL,
		"api_key_count", len(cfg.APIKeys),
	)

	return cfg, nil
}
