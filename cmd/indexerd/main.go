// Command indexerd projects account updates and swap events into the
// relational store and serves the read-side HTTP API (spec.md §4.10, §6.4).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fluxfield/clmm/gateway/middleware"
	"github.com/fluxfield/clmm/observability/logging"
	telemetry "github.com/fluxfield/clmm/observability/otel"
	"github.com/fluxfield/clmm/services/indexerd"
	"github.com/fluxfield/clmm/services/indexerd/api"
	"github.com/fluxfield/clmm/services/indexerd/config"
	"github.com/fluxfield/clmm/services/indexerd/dedupe"
	"github.com/fluxfield/clmm/services/indexerd/export"
	"github.com/fluxfield/clmm/services/indexerd/storage"
	"github.com/fluxfield/clmm/services/indexerd/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "indexerd:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	var cmd string
	flag.StringVar(&cfgPath, "config", "services/indexerd/indexerd.yaml", "path to indexerd config")
	flag.Parse()
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	} else {
		cmd = "run"
	}

	env := strings.TrimSpace(os.Getenv("FLUXFIELD_ENV"))
	logger := logging.Setup("indexerd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry, err := initTelemetry(env)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	store, err := storage.OpenPostgres(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	switch cmd {
	case "migrate":
		return store.Migrate()
	case "health":
		logger.Info("indexerd health check ok")
		return nil
	case "run":
		return serve(cfg, store, logger)
	default:
		return fmt.Errorf("unknown command %q (want run|migrate|health)", cmd)
	}
}

func serve(cfg config.Config, store *storage.PostgresStore, logger *slog.Logger) error {
	cache, err := dedupe.Open(cfg.Dedupe.Path)
	if err != nil {
		return fmt.Errorf("open dedupe cache: %w", err)
	}
	defer cache.Close()

	dispatchers := make([]*webhook.Dispatcher, 0, len(cfg.Webhooks))
	for _, sub := range cfg.Webhooks {
		d, err := webhook.NewDispatcher(sub.Endpoint, []byte(sub.Secret))
		if err != nil {
			return fmt.Errorf("configure webhook %q: %w", sub.Name, err)
		}
		defer d.Close()
		dispatchers = append(dispatchers, d)
	}

	if cfg.Export.Enabled {
		writer := export.NewWriter(store, cfg.Export.Directory)
		go runExportLoop(writer, store, cfg.Export.Interval, logger)
	}

	projector := indexerd.NewProjector(store, indexerd.BinaryDecoder{}).WithSignatureCache(cache)

	var auth *middleware.Authenticator
	if cfg.Auth.Enabled {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, nil)
	}
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"public": {RatePerSecond: cfg.RateLimit.RatePerSecond, Burst: cfg.RateLimit.Burst},
	}, nil)

	server := api.NewServer(store, projector, dispatchers, auth, limiter, nil)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "indexerd",
		MetricsPrefix: "indexerd",
		Enabled:       true,
	}, nil)

	root := http.NewServeMux()
	root.Handle("/metrics", obs.MetricsHandler())
	root.Handle("/", server)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: root,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("indexerd listening", "addr", cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func runExportLoop(writer *export.Writer, store *storage.PostgresStore, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		markets, err := store.Markets(ctx, storage.PaginationParams{Limit: 500})
		if err != nil {
			logger.Error("export: list markets failed", "error", err)
			cancel()
			continue
		}
		now := time.Now().UTC()
		for _, market := range markets {
			if _, err := writer.ExportSwaps(ctx, market.Address, now); err != nil {
				logger.Error("export: swaps failed", "market", market.Address, "error", err)
			}
			start := now.Add(-24 * time.Hour)
			if _, err := writer.ExportCandles(ctx, market.Address, storage.Interval1h, start, now); err != nil {
				logger.Error("export: candles failed", "market", market.Address, "error", err)
			}
		}
		cancel()
	}
}

func initTelemetry(env string) (func(context.Context) error, error) {
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	return telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "indexerd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
}
