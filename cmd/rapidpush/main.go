package main

import (
	"context"
	_ "embed"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
)

//go:embed local.yaml
var configFile []byte

func main() {
	logger := newLogger(os.Stderr, os.Getenv("LOG_LEVEL"), isatty.IsTerminal(os.Stderr.Fd()))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp(logger, configFile).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}

// newLogger writes human readable lines to a terminal and JSON otherwise.
func newLogger(w io.Writer, level string, term bool) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if term {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "rapidpush")
}
