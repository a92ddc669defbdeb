package rapidpushclient_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-rapidpush/pkg/rapidpush"
	"github.com/tinywideclouds/go-rapidpush/rapidpushclient"
	"github.com/tinywideclouds/go-rapidpush/rapidpushclient/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeService answers like the hosted API, keyed by command.
func fakeService(t *testing.T, replies map[string]string, seen chan<- url.Values) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if seen != nil {
			seen <- r.PostForm
		}
		reply, ok := replies[r.PostForm.Get("command")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func newConfig(t *testing.T, serverURL string, keys ...string) *config.Config {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	cfg, err := config.UpdateConfigWithEnvOverrides(&config.Config{
		APIKeys:        keys,
		Endpoint:       u.Host + "/api",
		DisableSSL:     true,
		MetricsEnabled: true,
	}, newTestLogger())
	require.NoError(t, err)
	return cfg
}

func TestNew_Validation(t *testing.T) {
	_, err := rapidpushclient.New(nil, nil, newTestLogger())
	assert.Error(t, err)

	_, err = rapidpushclient.New(&config.Config{}, nil, newTestLogger())
	assert.Error(t, err)
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Notify and list groups", func(t *testing.T) {
		seen := make(chan url.Values, 2)
		server := fakeService(t, map[string]string{
			"notify":     `{"code":200,"desc":"Notification sent","data":""}`,
			"get_groups": `{"code":200,"desc":"ok","data":[{"group":"home"},{"group":"office"}]}`,
		}, seen)

		reg := prometheus.NewRegistry()
		client, err := rapidpushclient.New(newConfig(t, server.URL, "key-1"), reg, newTestLogger())
		require.NoError(t, err)

		n := rapidpush.NewNotification("Hello", "World")
		n.Group = "home"
		result, err := client.Notify(ctx, n)
		require.NoError(t, err)
		assert.True(t, result.Valid())
		assert.False(t, result.IsMulti())

		form := <-seen
		assert.Equal(t, "key-1", form.Get("apikey"))
		var data map[string]string
		require.NoError(t, json.Unmarshal([]byte(form.Get("data")), &data))
		assert.Equal(t, map[string]string{
			"title":    "Hello",
			"message":  "World",
			"priority": "2",
			"category": "default",
			"group":    "home",
		}, data)

		groups, err := client.GetGroups(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"home", "office"}, groups.Groups())
		<-seen

		count, err := testutil.GatherAndCount(reg, "rapidpush_client_requests_total")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Success - Multi key schedule", func(t *testing.T) {
		seen := make(chan url.Values, 1)
		server := fakeService(t, map[string]string{
			"notify": `{"k2":{"code":200,"desc":"ok","data":""},"k1":{"code":200,"desc":"ok","data":""}}`,
		}, seen)

		now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		client, err := rapidpushclient.New(newConfig(t, server.URL, "k1", "k2"), nil, newTestLogger(),
			rapidpush.WithClock(func() time.Time { return now }),
			rapidpush.WithLocation(time.UTC),
		)
		require.NoError(t, err)

		result, err := client.Schedule(ctx, now.Add(90*time.Minute), rapidpush.NewNotification("t", "m"))
		require.NoError(t, err)
		require.True(t, result.IsMulti())
		assert.Equal(t, map[string]bool{"k1": true, "k2": true}, result.PerKeyValid())
		assert.NoError(t, result.Err())

		multi, ok := result.Envelope().(rapidpush.Multi)
		require.True(t, ok)
		assert.Equal(t, []string{"k2", "k1"}, multi.Keys())

		form := <-seen
		assert.Equal(t, "k1,k2", form.Get("apikey"))
		var data map[string]string
		require.NoError(t, json.Unmarshal([]byte(form.Get("data")), &data))
		assert.Equal(t, "2024-05-01 09:30:00", data["schedule_at"])
	})

	t.Run("Failure - Rejected key", func(t *testing.T) {
		server := fakeService(t, map[string]string{
			"notify": `{"code":403,"desc":"Invalid API key","data":""}`,
		}, nil)

		client, err := rapidpushclient.New(newConfig(t, server.URL, "bad"), nil, newTestLogger())
		require.NoError(t, err)

		_, err = client.Notify(ctx, rapidpush.NewNotification("t", "m"))
		var respErr *rapidpush.ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, 403, respErr.Code)
		assert.Equal(t, "Invalid API key", respErr.Message)
	})
}

func TestNew_SharedRegistry(t *testing.T) {
	ctx := context.Background()
	server := fakeService(t, map[string]string{
		"notify": `{"code":200,"desc":"ok","data":""}`,
	}, nil)
	reg := prometheus.NewRegistry()

	first, err := rapidpushclient.New(newConfig(t, server.URL, "key-a"), reg, nil)
	require.NoError(t, err)
	var second *rapidpush.Client
	require.NotPanics(t, func() {
		second, err = rapidpushclient.New(newConfig(t, server.URL, "key-b"), reg, nil)
	})
	require.NoError(t, err)

	_, err = first.Notify(ctx, rapidpush.NewNotification("t", "m"))
	require.NoError(t, err)
	_, err = second.Notify(ctx, rapidpush.NewNotification("t", "m"))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != "rapidpush_client_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, total)
}

func TestNew_ConflictingRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rapidpush_client_requests_total",
		Help: "Something else entirely.",
	}))

	_, err := rapidpushclient.New(&config.Config{
		APIKeys:        []string{"k"},
		Endpoint:       "rapidpush.net/api",
		MetricsEnabled: true,
	}, reg, newTestLogger())
	assert.Error(t, err)
}
