// Package rapidpushclient assembles a ready-to-use RapidPush client from configuration.
package rapidpushclient

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinywideclouds/go-rapidpush/internal/platform/httpapi"
	"github.com/tinywideclouds/go-rapidpush/pkg/rapidpush"
	"github.com/tinywideclouds/go-rapidpush/rapidpushclient/config"
)

// New assembles the client.
// reg is only used when cfg.MetricsEnabled is set; nil disables metrics regardless.
// Clients built on the same reg share one set of request metrics.
func New(
	cfg *config.Config,
	reg prometheus.Registerer,
	logger *slog.Logger,
	opts ...rapidpush.Option,
) (*rapidpush.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// 1. Transport
	var transportOpts []httpapi.Option
	if cfg.MetricsEnabled && reg != nil {
		metrics, err := httpapi.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register client metrics: %w", err)
		}
		transportOpts = append(transportOpts, httpapi.WithMetrics(metrics))
	}
	transport := httpapi.NewTransport(httpapi.Config{
		Endpoint:   cfg.Endpoint,
		DisableSSL: cfg.DisableSSL,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
	}, logger, transportOpts...)

	// 2. Façade
	client, err := rapidpush.NewClient(transport, cfg.APIKeys, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create rapidpush client: %w", err)
	}

	logger.Info("RapidPush client ready",
		"url", transport.URL(),
		"api_key_count", len(cfg.APIKeys),
		"metrics", cfg.MetricsEnabled && reg != nil,
	)
	return client, nil
}
