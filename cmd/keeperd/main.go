// Command keeperd runs the off-chain field-commitment keeper loop (C9).
package main

import (
	"context"
	"encoding/hex"
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

	"github.com/fluxfield/clmm/cmd/internal/passphrase"
	"github.com/fluxfield/clmm/crypto"
	"github.com/fluxfield/clmm/gateway/middleware"
	"github.com/fluxfield/clmm/observability/logging"
	telemetry "github.com/fluxfield/clmm/observability/otel"
	"github.com/fluxfield/clmm/services/keeperd"
	"github.com/fluxfield/clmm/services/keeperd/config"
	"github.com/fluxfield/clmm/services/keeperd/rpc"
	"github.com/fluxfield/clmm/services/keeperd/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "keeperd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath string
		cmd     string
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "services/keeperd/keeperd.toml", "path to keeperd config")
	flag.BoolVar(&dryRun, "dry-run", false, "compute but do not submit field commitments")
	flag.Parse()
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	} else {
		cmd = "run"
	}

	env := strings.TrimSpace(os.Getenv("FLUXFIELD_ENV"))
	logger := logging.Setup("keeperd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dryRun {
		cfg.DryRun = true
	}
	logger.Info("keeperd config loaded",
		"cluster", cfg.Cluster,
		"markets", len(cfg.Markets),
		logging.MaskField("keystore_path", cfg.KeystorePath),
	)

	shutdownTelemetry, err := initTelemetry(env)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	signer, err := loadSigner(cfg)
	if err != nil {
		return fmt.Errorf("load signer: %w", err)
	}

	client := rpc.NewHTTPClient(cfg.Cluster, cfg.RequestTimeout())

	st, err := store.Open(cfg.BboltPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	svc := keeperd.New(cfg, client, st, signer, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cmd == "run" && strings.TrimSpace(cfg.MetricsAddress) != "" {
		go serveMetrics(ctx, cfg.MetricsAddress, logger)
	}

	switch cmd {
	case "health":
		return svc.HealthCheck(ctx)
	case "run":
		return svc.Run(ctx)
	default:
		return fmt.Errorf("unknown command %q (want run|health)", cmd)
	}
}

// serveMetrics exposes a /metrics scrape endpoint for the keeper's cycle,
// submit-error, and health-check counters (observability/metrics) until ctx
// is cancelled. keeperd has no other HTTP surface, so this runs standalone
// rather than mounted on the RPC client's router.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "keeperd",
		MetricsPrefix: "keeperd",
		Enabled:       true,
	}, nil)
	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("keeperd metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
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
		ServiceName: "keeperd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
}

func loadSigner(cfg config.Config) (*crypto.PrivateKey, error) {
	if keyHex := strings.TrimSpace(os.Getenv("KEEPERD_SIGNER_KEY")); keyHex != "" {
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("decode KEEPERD_SIGNER_KEY: %w", err)
		}
		return crypto.PrivateKeyFromBytes(keyBytes)
	}
	if strings.TrimSpace(cfg.KeystorePath) == "" {
		return nil, fmt.Errorf("neither KEEPERD_SIGNER_KEY nor keystore_path is configured")
	}
	source := passphrase.NewSource("KEEPERD_KEYSTORE_PASSPHRASE")
	pass, err := source.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(cfg.KeystorePath, pass)
}
