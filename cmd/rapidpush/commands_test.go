package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-rapidpush/pkg/rapidpush"
	"gopkg.in/yaml.v3"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeConfig points a config file at server and returns its path.
func writeConfig(t *testing.T, server *httptest.Server, keys ...string) string {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	raw, err := yaml.Marshal(map[string]any{
		"api_keys":        keys,
		"endpoint":        u.Host + "/api",
		"disable_ssl":     true,
		"metrics_enabled": true,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rapidpush.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func reply(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(newTestLogger(), configFile)
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"rapidpush"}, args...))
	return out.String(), err
}

func TestApp_Notify(t *testing.T) {
	t.Run("Success - Single key", func(t *testing.T) {
		server := reply(`{"code":200,"desc":"ok","data":""}`)
		defer server.Close()

		out, err := runApp(t, "--config", writeConfig(t, server, "key-1"),
			"notify", "--title", "Hi", "--message", "There", "--priority", "5")
		require.NoError(t, err)
		assert.Equal(t, "sent\n", out)
	})

	t.Run("Success - Multi key output is per key", func(t *testing.T) {
		server := reply(`{"first-key":{"code":200,"desc":"ok","data":""},"second-key":{"code":200,"desc":"ok","data":""}}`)
		defer server.Close()

		out, err := runApp(t, "--config", writeConfig(t, server, "first-key", "second-key"),
			"notify", "--title", "Hi", "--message", "There")
		require.NoError(t, err)
		assert.Equal(t, "****-key: sent\n****-key: sent\n", out)
	})

	t.Run("Failure - Partial multi key failure exits with an error", func(t *testing.T) {
		server := reply(`{"aaaa1111":{"code":200,"desc":"ok","data":""},"bbbb2222":{"code":403,"desc":"denied","data":""}}`)
		defer server.Close()

		out, err := runApp(t, "--config", writeConfig(t, server, "aaaa1111", "bbbb2222"),
			"notify", "--title", "Hi", "--message", "There")
		assert.ErrorIs(t, err, rapidpush.ErrResponse)
		assert.Equal(t, "****1111: sent\n****2222: failed (403 denied)\n", out)
	})

	t.Run("Failure - Invalid priority", func(t *testing.T) {
		server := reply(`{"code":200,"desc":"ok","data":""}`)
		defer server.Close()

		_, err := runApp(t, "--config", writeConfig(t, server, "key-1"),
			"notify", "--title", "Hi", "--message", "There", "--priority", "9")
		assert.ErrorIs(t, err, rapidpush.ErrInvalidPriority)
	})

	t.Run("Failure - No API keys configured", func(t *testing.T) {
		_, err := runApp(t, "notify", "--title", "Hi", "--message", "There")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_keys is required")
	})
}

func TestApp_Schedule(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if assert.NoError(t, r.ParseForm()) {
			received = r.PostForm
		}
		_, _ = w.Write([]byte(`{"code":200,"desc":"ok","data":""}`))
	}))
	defer server.Close()

	at := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Minute)
	out, err := runApp(t, "--config", writeConfig(t, server, "key-1"),
		"schedule", "--at", at.Format(time.RFC3339), "--title", "Later", "--message", "Soon")
	require.NoError(t, err)
	assert.Contains(t, out, "scheduled for")
	assert.Contains(t, out, "from now")
	assert.Contains(t, received.Get("data"), `"schedule_at":"`+at.Format("2006-01-02 15:04")+`:00"`)
}

func TestApp_Groups(t *testing.T) {
	t.Run("Success - Single key", func(t *testing.T) {
		server := reply(`{"code":200,"desc":"ok","data":[{"group":"home"},{"group":"work"}]}`)
		defer server.Close()

		out, err := runApp(t, "--config", writeConfig(t, server, "key-1"), "groups")
		require.NoError(t, err)
		assert.Equal(t, "home\nwork\n", out)
	})

	t.Run("Success - Multi key", func(t *testing.T) {
		server := reply(`{"aaaa1111":{"code":200,"desc":"ok","data":"[{\"group\":\"home\"}]"},"bbbb2222":{"code":403,"desc":"denied","data":""}}`)
		defer server.Close()

		out, err := runApp(t, "--config", writeConfig(t, server, "aaaa1111", "bbbb2222"), "groups")
		assert.Error(t, err)
		assert.Equal(t, "****1111: home\n****2222: failed (403 denied)\n", out)
	})
}

func TestParseScheduleTime(t *testing.T) {
	berlin := time.FixedZone("CET", 60*60)

	got, err := parseScheduleTime("2026-10-16 09:30", berlin)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)))

	got, err = parseScheduleTime(" 2026-10-16T09:30:00Z ", berlin)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)))

	_, err = parseScheduleTime("tomorrow", berlin)
	assert.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("abc"))
	assert.Equal(t, "****6789", maskKey("123456789"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", false).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, "debug", false).Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"service":"rapidpush"`)

	buf.Reset()
	newLogger(&buf, "", true).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
