package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hex20/telemetry-health/simulator/internal/config"
	"github.com/hex20/telemetry-health/simulator/internal/sim"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())
	slog.Info("telemetry-simulator starting",
		"http_port", cfg.HTTPPort,
		"tick_interval", cfg.TickInterval,
		"buffer_size", cfg.BufferSize,
		"mqtt", cfg.MQTT.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := sim.New(cfg)
	s.Prefill(cfg.Prefill, cfg.TickInterval)
	go s.Run(ctx, cfg.TickInterval)

	if cfg.MQTT.Enabled {
		sub, err := sim.Subscribe(cfg.MQTT, s)
		if err != nil {
			slog.Error("failed to connect command broker", "err", err)
			os.Exit(1)
		}
		defer sub.Close()
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           sim.NewHandler(s, cfg.ServeLatest),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("telemetry-simulator shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
