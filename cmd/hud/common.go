package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/client"
	"github.com/zulandar/agenthud/internal/config"
)

// loadConfig reads the config file, falling back to defaults when it is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// addConfigFlag registers the shared --config flag.
func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", config.DefaultPath, "path to Agent HUD config file")
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// findHub locates a running hub using the discovery section.
func findHub(ctx context.Context, cfg *config.Config) (*client.API, error) {
	d := cfg.Discovery
	api, err := client.FindHub(ctx, d.Host, d.PortMin, d.PortMax, ms(d.AttemptTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("find hub on %s ports %d..%d: %w", d.Host, d.PortMin, d.PortMax, err)
	}
	return api, nil
}

// connectAgent registers as an agent using the discovery section.
func connectAgent(ctx context.Context, cfg *config.Config, name string, log *slog.Logger) (*client.Agent, error) {
	d := cfg.Discovery
	agent, err := client.Connect(ctx, client.AgentOpts{
		Name:           name,
		Host:           d.Host,
		MinPort:        d.PortMin,
		MaxPort:        d.PortMax,
		AttemptTimeout: ms(d.AttemptTimeoutMS),
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("connect as agent %q: %w", name, err)
	}
	return agent, nil
}

// truncate shortens s to max runes, appending "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
