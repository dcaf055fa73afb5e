package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hex20/telemetry-health/monitor/internal/alerts"
	"github.com/hex20/telemetry-health/monitor/internal/api"
	"github.com/hex20/telemetry-health/monitor/internal/auth"
	"github.com/hex20/telemetry-health/monitor/internal/compute"
	"github.com/hex20/telemetry-health/monitor/internal/config"
	"github.com/hex20/telemetry-health/monitor/internal/ingest"
	"github.com/hex20/telemetry-health/monitor/internal/inject"
	"github.com/hex20/telemetry-health/monitor/internal/scheduler"
	"github.com/hex20/telemetry-health/monitor/internal/window"
	"github.com/hex20/telemetry-health/monitor/internal/ws"
)

// crossCheckTimeout bounds the upstream summary comparison after a refresh.
const crossCheckTimeout = 2 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve a static dashboard from this directory; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("telemetry-monitor starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())
	slog.Info("config loaded",
		"ingest_endpoint", cfg.Ingest.Endpoint,
		"capacity", cfg.Window.Capacity,
		"refresh_interval", cfg.Window.RefreshInterval,
		"injection_transport", cfg.Injection.Transport,
		"http_port", cfg.Server.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := ingest.New(cfg.Ingest)
	if err != nil {
		slog.Error("failed to build ingest client", "err", err)
		os.Exit(1)
	}

	policy := compute.NewLive(policyFrom(cfg))
	win := window.New(cfg.Window.Capacity)

	// Injection transport: HTTP by default, MQTT when configured.
	var injector inject.Injector = client
	if cfg.Injection.Transport == "mqtt" {
		m, err := inject.NewMQTTInjector(cfg.Injection.MQTT)
		if err != nil {
			slog.Error("failed to connect injection broker", "err", err)
			os.Exit(1)
		}
		defer m.Close()
		injector = m
	}
	rng := rand.NewSource(time.Now().UnixNano())
	injections := inject.New(injector, inject.SelectorFor(cfg.Injection.Selector, rng))
	injections.SetTimeout(cfg.Injection.Timeout)

	alertEngine := alerts.New(cfg.Alerts)

	hub := ws.New(win, policy, ws.Options{AllowedOrigins: cfg.Server.AllowedOrigins})
	go hub.Run(ctx)

	sched := scheduler.New(client, win, scheduler.Options{FetchTimeout: cfg.Ingest.Timeout})
	onTick := func(snap *window.Snapshot) {
		hub.Notify()
		alertEngine.Evaluate(snap, policy.Load().Classifier)

		cctx, ccancel := context.WithTimeout(ctx, crossCheckTimeout)
		defer ccancel()
		local := policy.Load().Classifier.Summarize(snap.Readings)
		if _, err := client.CrossCheck(cctx, local); err != nil {
			slog.Debug("upstream summary unavailable", "err", err)
		}
	}
	if err := sched.Start(cfg.Window.RefreshInterval, onTick); err != nil {
		slog.Error("failed to start scheduler", "err", err)
		os.Exit(1)
	}

	// Hot reload applies thresholds, deviation baseline, injection policy and
	// alert delivery.
	go func() {
		if err := config.Watch(ctx, *configPath, cfg, func(c config.Change) {
			updated := c.Next
			level.Set(updated.Level())
			policy.Store(policyFrom(updated))
			injections.SetSelector(inject.SelectorFor(updated.Injection.Selector, rand.NewSource(time.Now().UnixNano())))
			injections.SetTimeout(updated.Injection.Timeout)
			alertEngine.Configure(updated.Alerts)
			slog.Info("config hot-reloaded",
				"thresholds", updated.Thresholds,
				"trailing", updated.Deviation.Trailing,
				"selector", updated.Injection.Selector,
				"webhooks", len(updated.Alerts.Webhooks),
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.Key() == "" {
		slog.Warn("server auth mode is apikey but the key is empty; mutating routes are open",
			"key_env", cfg.Server.Auth.KeyEnv)
	}
	handler := api.New(api.Options{
		Window:    win,
		Policy:    policy,
		Scheduler: sched,
		Injector:  injections,
		Alerts:    alertEngine,
		Guard:     auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.Header, cfg.Server.Auth.Key()),
		Clients:   hub.Count,
	})

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", handler)
	httpMux.Handle("/metrics", handler)
	httpMux.Handle("/ws/stream", hub)

	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			// Single-page app: unknown paths fall back to index.html.
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("telemetry-monitor shutting down")
	sched.Stop()
	injections.Wait()
	alertEngine.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func policyFrom(cfg *config.Config) compute.Policy {
	return compute.Policy{
		Classifier: compute.NewClassifier(cfg.Thresholds),
		Analyzer:   compute.Analyzer{Trailing: cfg.Deviation.Trailing},
	}
}
