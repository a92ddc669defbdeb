// Package rapidpush is a client for the RapidPush notification service.
//
// A Client turns notify and get_groups calls into one request each through a
// Transport, decodes the reply envelope and wraps it in a typed result.
// Requests made with several API keys come back as a Multi envelope whose
// entries are reported per key instead of failing the whole call.
package rapidpush

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Commands understood by the service.
const (
	CommandNotify    = "notify"
	CommandGetGroups = "get_groups"
)

// Notification defaults and the accepted priority range, both ends inclusive.
const (
	MinPriority     = 1
	MaxPriority     = 6
	DefaultPriority = 2
	DefaultCategory = "default"
)

// Transport delivers one command to the service and returns the raw reply.
// Implementations return a *TransportError when no usable reply was received.
type Transport interface {
	Send(ctx context.Context, command, apiKey string, params map[string]string) ([]byte, error)
}

// Notification is the content of a notify command.
type Notification struct {
	Title    string
	Message  string
	Priority int
	Category string
	// Group targets one device group; empty means every device.
	Group string
	// ScheduleAt delays delivery. Nil sends immediately.
	ScheduleAt *time.Time
}

// NewNotification returns a notification with the default priority and
// category, for every device group, sent immediately.
func NewNotification(title, message string) Notification {
	return Notification{
		Title:    title,
		Message:  message,
		Priority: DefaultPriority,
		Category: DefaultCategory,
	}
}

// Client is safe for concurrent use when its Transport is.
type Client struct {
	transport Transport
	apiKey    string
	keyCount  int
	now       func() time.Time
	location  *time.Location
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces time.Now when validating schedule dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLocation sets the wall-clock zone used to compare schedule dates.
// It defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.location = loc }
}

// NewClient creates a client for one or more API keys. Several keys are sent
// together and make the service answer per key.
func NewClient(transport Transport, apiKeys []string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("rapidpush: transport is required")
	}
	if len(apiKeys) == 0 {
		return nil, errors.New("rapidpush: at least one api key is required")
	}
	for i, key := range apiKeys {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("rapidpush: api key %d is empty", i)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		transport: transport,
		apiKey:    strings.Join(apiKeys, ","),
		keyCount:  len(apiKeys),
		now:       time.Now,
		location:  time.Local,
		logger:    logger.With("component", "RapidPushClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Notify sends n, or schedules it when n.ScheduleAt is set.
// A rejected single-key request is returned as a *ResponseError. A multi-key
// request always yields a result; failed keys show up in PerKeyValid and Err,
// and AsSingle(result.Envelope()) gives the first-entry single-reply view.
func (c *Client) Notify(ctx context.Context, n Notification) (*NotifyResult, error) {
	if n.Priority < MinPriority || n.Priority > MaxPriority {
		return nil, &InvalidPriorityError{Priority: n.Priority}
	}

	params := map[string]string{
		"title":    n.Title,
		"message":  n.Message,
		"priority": strconv.Itoa(n.Priority),
		"category": n.Category,
		"group":    n.Group,
	}
	if n.ScheduleAt != nil {
		at, err := NormalizeSchedule(*n.ScheduleAt, c.now(), c.location)
		if err != nil {
			return nil, err
		}
		params["schedule_at"] = at
	}

	env, err := c.execute(ctx, CommandNotify, params)
	if err != nil {
		return nil, err
	}
	result, err := NewNotifyResult(env)
	if err != nil {
		c.logger.Warn("Notification rejected", "err", err)
		return nil, err
	}
	if result.IsMulti() {
		if failed := result.Err(); failed != nil {
			c.logger.Warn("Notification rejected for some api keys", "err", failed)
		}
	}
	return result, nil
}

// Schedule sends n for delivery at the given instant.
func (c *Client) Schedule(ctx context.Context, at time.Time, n Notification) (*NotifyResult, error) {
	n.ScheduleAt = &at
	return c.Notify(ctx, n)
}

// GetGroups lists the device groups configured for the account.
func (c *Client) GetGroups(ctx context.Context) (*GroupsResult, error) {
	env, err := c.execute(ctx, CommandGetGroups, nil)
	if err != nil {
		return nil, err
	}
	result, err := NewGroupsResult(env)
	if err != nil {
		c.logger.Warn("Group listing rejected", "err", err)
		return nil, err
	}
	return result, nil
}

func (c *Client) execute(ctx context.Context, command string, params map[string]string) (Envelope, error) {
	c.logger.Debug("Sending command", "command", command, "api_key_count", c.keyCount)

	body, err := c.transport.Send(ctx, command, c.apiKey, params)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			te = &TransportError{Command: command, Cause: err}
			err = te
		}
		c.logger.Error("Transport failed", "command", command, "request_id", te.RequestID, "err", err)
		return nil, err
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		c.logger.Error("Undecodable reply", "command", command, "err", err)
		return nil, err
	}
	return env, nil
}
