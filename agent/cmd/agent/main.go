package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/promedge/agent/internal/api"
	"github.com/obsidianstack/promedge/agent/internal/config"
	"github.com/obsidianstack/promedge/agent/internal/exposition"
	"github.com/obsidianstack/promedge/agent/internal/monitor"
	"github.com/obsidianstack/promedge/agent/internal/store"
	"github.com/obsidianstack/promedge/agent/internal/transport"
	"github.com/obsidianstack/promedge/agent/internal/ws"
	"github.com/obsidianstack/promedge/pkg/edge"
)

// streamInterval is how often the WebSocket hub re-broadcasts the full snapshot.
const streamInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("promedge-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())
	slog.Info("config loaded",
		"prometheus", cfg.Prometheus.Endpoint,
		"auth_mode", cfg.Prometheus.Auth.Mode,
		"checks", len(cfg.Checks),
		"interval", cfg.Interval,
		"listen", cfg.HTTP.Listen,
	)

	hc, err := transport.New(cfg.Prometheus)
	if err != nil {
		slog.Error("failed to build prometheus client", "err", err)
		os.Exit(1)
	}
	det := edge.NewForURL(cfg.Prometheus.Endpoint, hc, edge.WithLogger(logger))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.ResultTTL)
	go st.Run(ctx)

	metrics := exposition.New()
	hub := ws.New(st, streamInterval)
	go hub.Run(ctx)

	mon := monitor.New(det, cfg.Checks, st, metrics, hub)
	if len(cfg.Checks) == 0 {
		slog.Warn("no checks configured; agent will idle until the config changes")
	}

	// Hot reload swaps the check list and log level. Backend and listener
	// changes need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.SlogLevel())
			mon.SetChecks(updated.Checks)
			names := make([]string, 0, len(updated.Checks))
			for _, c := range updated.Checks {
				names = append(names, c.Name)
			}
			metrics.Forget(names)
			if updated.Prometheus.Endpoint != cfg.Prometheus.Endpoint || updated.HTTP.Listen != cfg.HTTP.Listen {
				slog.Warn("config reload: prometheus endpoint and http listen changes require a restart")
			}
			slog.Info("config hot-reloaded", "checks", len(updated.Checks))
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	go mon.Run(ctx, cfg.Interval)

	var httpSrv *http.Server
	if cfg.HTTP.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/api/", api.New(st, det))
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/ws/stream", hub)

		httpSrv = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP server listening", "addr", cfg.HTTP.Listen)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server stopped", "err", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("promedge-agent shutting down")
	if httpSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}
}
