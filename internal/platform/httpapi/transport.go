// Package httpapi is the HTTP(S) transport of the RapidPush client.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-rapidpush/pkg/rapidpush"
)

const (
	DefaultEndpoint  = "rapidpush.net/api"
	DefaultUserAgent = "RapidPush Go-Library"
	DefaultTimeout   = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPClient is the subset of *http.Client the transport uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes where and how requests are sent.
type Config struct {
	// Endpoint is host and path without a scheme, e.g. "rapidpush.net/api".
	Endpoint string
	// DisableSSL switches the scheme from https to http.
	DisableSSL bool
	UserAgent  string
	// Timeout bounds one request when the transport builds its own client.
	Timeout time.Duration
}

type Transport struct {
	url       string
	userAgent string
	client    HTTPClient
	metrics   *Metrics
	logger    *slog.Logger
}

var _ rapidpush.Transport = (*Transport)(nil)

type Option func(*Transport)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(client HTTPClient) Option {
	return func(t *Transport) { t.client = client }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

func NewTransport(cfg Config, logger *slog.Logger, opts ...Option) *Transport {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	scheme := "https"
	if cfg.DisableSSL {
		scheme = "http"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Transport{
		url:       scheme + "://" + endpoint,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With("component", "RapidPushTransport"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL is the address every command is posted to.
func (t *Transport) URL() string { return t.url }

// Send posts one command and returns the reply body. Any failure to obtain a
// 2xx reply is a *rapidpush.TransportError carrying the request_id it was
// logged under.
func (t *Transport) Send(ctx context.Context, command, apiKey string, params map[string]string) ([]byte, error) {
	requestID := uuid.NewString()
	log := t.logger.With("command", command, "request_id", requestID)

	form, err := EncodeForm(command, apiKey, params)
	if err != nil {
		return nil, &rapidpush.TransportError{Command: command, RequestID: requestID, Cause: err}
	}

	start := time.Now()
	body, status, err := t.post(ctx, form)
	took := time.Since(start)

	switch {
	case err != nil:
		t.metrics.observe(command, outcomeNetworkError, took)
		log.Error("RapidPush request failed", "err", err)
		return nil, &rapidpush.TransportError{Command: command, RequestID: requestID, Cause: err}
	case status < 200 || status > 299:
		t.metrics.observe(command, outcomeHTTPError, took)
		log.Warn("RapidPush returned an unexpected status", "status", status)
		return nil, &rapidpush.TransportError{
			Command:    command,
			StatusCode: status,
			RequestID:  requestID,
			Cause:      fmt.Errorf("http status %d", status),
		}
	}

	t.metrics.observe(command, outcomeOK, took)
	log.Debug("RapidPush request completed", "status", status, "took", took)
	return body, nil
}

func (t *Transport) post(ctx context.Context, form string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(form))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, resp.StatusCode, errors.New("response body exceeds 1 MiB")
	}
	return body, resp.StatusCode, nil
}

// EncodeForm builds the request body: the fields command, apikey and data,
// where data is params as a JSON object ("{}" when empty).
func EncodeForm(command, apiKey string, params map[string]string) (string, error) {
	data := "{}"
	if len(params) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(params); err != nil {
			return "", fmt.Errorf("encoding params: %w", err)
		}
		data = strings.TrimSuffix(buf.String(), "\n")
	}
	values := url.Values{}
	values.Set("command", command)
	values.Set("apikey", apiKey)
	values.Set("data", data)
	return values.Encode(), nil
}
