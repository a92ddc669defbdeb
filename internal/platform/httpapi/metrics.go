package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK           = "ok"
	outcomeHTTPError    = "http_error"
	outcomeNetworkError = "network_error"
)

// Metrics counts and times the requests made by a Transport.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the transport metrics on reg. A nil registerer yields
// a Metrics that records nothing. Registering twice on the same reg reuses the
// collectors already there, so every transport built on it shares the counts.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return &Metrics{}, nil
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rapidpush_client_requests_total",
		Help: "Requests sent to the RapidPush API by command and outcome.",
	}, []string{"command", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rapidpush_client_request_duration_seconds",
		Help:    "Round trip time of RapidPush API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	requests, err := register(reg, requests)
	if err != nil {
		return nil, fmt.Errorf("registering request counter: %w", err)
	}
	duration, err = register(reg, duration)
	if err != nil {
		return nil, fmt.Errorf("registering request histogram: %w", err)
	}
	return &Metrics{
		requests: requests,
		duration: duration,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}

func (m *Metrics) observe(command, outcome string, took time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(took.Seconds())
}
