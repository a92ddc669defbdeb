package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinywideclouds/go-rapidpush/pkg/rapidpush"
	"github.com/tinywideclouds/go-rapidpush/rapidpushclient"
	"github.com/tinywideclouds/go-rapidpush/rapidpushclient/config"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const scheduleLayout = "2006-01-02 15:04"

func notificationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
		&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true},
		&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Value: rapidpush.DefaultPriority,
			Usage: fmt.Sprintf("%d (lowest) to %d (highest)", rapidpush.MinPriority, rapidpush.MaxPriority)},
		&cli.StringFlag{Name: "category", Value: rapidpush.DefaultCategory},
		&cli.StringFlag{Name: "group", Usage: "deliver only to devices in this group"},
	}
}

// runner holds what every command needs; the client itself is built per
// invocation so that help output never requires a valid configuration.
type runner struct {
	logger     *slog.Logger
	configData []byte
	registry   *prometheus.Registry
}

func newApp(logger *slog.Logger, configData []byte) *cli.App {
	r := &runner{logger: logger, configData: configData}

	return &cli.App{
		Name:  "rapidpush",
		Usage: "Send push notifications through the RapidPush service",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file (defaults to the embedded one)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "notify",
				Usage:  "Send a notification now",
				Flags:  notificationFlags(),
				Action: r.notify,
			},
			{
				Name:  "schedule",
				Usage: "Schedule a notification for a later minute",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "at",
						Required: true,
						Usage:    `"2006-01-02 15:04" in local time, or RFC 3339`,
					},
				}, notificationFlags()...),
				Action: r.schedule,
			},
			{
				Name:   "groups",
				Usage:  "List the device groups of the account",
				Action: r.groups,
			},
		},
		After: func(cctx *cli.Context) error {
			r.reportMetrics()
			return nil
		},
	}
}

func (r *runner) client(cctx *cli.Context) (*rapidpush.Client, error) {
	raw := r.configData
	if path := cctx.Path("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		raw = data
	}

	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, r.logger)
	if err != nil {
		return nil, err
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, r.logger)
	if err != nil {
		return nil, err
	}

	var reg prometheus.Registerer
	if cfg.MetricsEnabled {
		r.registry = prometheus.NewRegistry()
		reg = r.registry
	}
	return rapidpushclient.New(cfg, reg, r.logger)
}

func notificationFromFlags(cctx *cli.Context) rapidpush.Notification {
	n := rapidpush.NewNotification(cctx.String("title"), cctx.String("message"))
	n.Priority = cctx.Int("priority")
	n.Category = cctx.String("category")
	n.Group = cctx.String("group")
	return n
}

func (r *runner) notify(cctx *cli.Context) error {
	client, err := r.client(cctx)
	if err != nil {
		return err
	}
	result, err := client.Notify(cctx.Context, notificationFromFlags(cctx))
	if err != nil {
		return err
	}
	printNotifyResult(cctx.App.Writer, result, "sent")
	return result.Err()
}

func (r *runner) schedule(cctx *cli.Context) error {
	at, err := parseScheduleTime(cctx.String("at"), time.Local)
	if err != nil {
		return err
	}
	client, err := r.client(cctx)
	if err != nil {
		return err
	}
	result, err := client.Schedule(cctx.Context, at, notificationFromFlags(cctx))
	if err != nil {
		return err
	}
	printNotifyResult(cctx.App.Writer, result,
		fmt.Sprintf("scheduled for %s (%s)", at.Format(scheduleLayout), humanize.Time(at)))
	return result.Err()
}

func (r *runner) groups(cctx *cli.Context) error {
	client, err := r.client(cctx)
	if err != nil {
		return err
	}
	result, err := client.GetGroups(cctx.Context)
	if err != nil {
		return err
	}

	w := cctx.App.Writer
	if !result.IsMulti() {
		for _, g := range result.Groups() {
			fmt.Fprintln(w, g)
		}
		return nil
	}
	multi, ok := result.Envelope().(rapidpush.Multi)
	if !ok {
		return nil
	}
	perKey := result.PerKeyGroups()
	for _, key := range multi.Keys() {
		resp, _ := multi.Get(key)
		if !resp.OK() {
			fmt.Fprintf(w, "%s: failed (%d %s)\n", maskKey(key), resp.Code, resp.Message)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", maskKey(key), strings.Join(perKey[key], ", "))
	}
	return result.Err()
}

func printNotifyResult(w io.Writer, result *rapidpush.NotifyResult, verb string) {
	multi, ok := result.Envelope().(rapidpush.Multi)
	if !ok {
		fmt.Fprintln(w, verb)
		return
	}
	for _, key := range multi.Keys() {
		resp, _ := multi.Get(key)
		if resp.OK() {
			fmt.Fprintf(w, "%s: %s\n", maskKey(key), verb)
		} else {
			fmt.Fprintf(w, "%s: failed (%d %s)\n", maskKey(key), resp.Code, resp.Message)
		}
	}
}

// parseScheduleTime accepts RFC 3339 or a minute in loc.
func parseScheduleTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(scheduleLayout, s, loc)
	if err != nil {
		return time.Time{}, errors.New(`--at must look like "2006-01-02 15:04" or be RFC 3339`)
	}
	return t, nil
}

// maskKey keeps API keys out of terminal scrollback.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func (r *runner) reportMetrics() {
	if r.registry == nil {
		return
	}
	families, err := r.registry.Gather()
	if err != nil {
		r.logger.Warn("Gathering metrics failed", "err", err)
		return
	}
	for _, family := range families {
		if family.GetName() != "rapidpush_client_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			args := []any{"count", m.GetCounter().GetValue()}
			for _, label := range m.GetLabel() {
				args = append(args, label.GetName(), label.GetValue())
			}
			r.logger.Info("RapidPush requests", args...)
		}
	}
}
