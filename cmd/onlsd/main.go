package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"onlsale/config"
	"onlsale/core"
	"onlsale/crypto"
	"onlsale/integrations/eventlog"
	"onlsale/observability"
	"onlsale/observability/logging"
	telemetry "onlsale/observability/otel"
	"onlsale/rpc"
	"onlsale/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	networkFlag := flag.String("network", "", "Network account set to deploy with (overrides NetworkName)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if network := strings.TrimSpace(*networkFlag); network != "" {
		cfg.NetworkName = network
		if err := config.ValidateConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid network: %v\n", err)
			os.Exit(1)
		}
	}

	env := strings.TrimSpace(os.Getenv("ONLS_ENV"))
	if env != "" {
		cfg.Environment = env
	}
	env = cfg.Environment
	logger := logging.SetupFile("onlsd", env, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("node stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// node bundles the services opened for one daemon run.
type node struct {
	core    *core.Node
	db      *storage.LevelDB
	archive *eventlog.Store
}

func (n *node) Close() {
	if n.archive != nil {
		_ = n.archive.Close()
	}
	if n.db != nil {
		n.db.Close()
	}
}

// openNode opens storage and the event archive, wires sinks and metrics and
// deploys the configured sale when the store is empty.
func openNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	out := &node{db: db}
	out.core, err = core.NewNode(db)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("create node: %w", err)
	}
	out.core.SetLogger(logger)
	out.core.SetMetrics(observability.Sale())
	out.core.AddSink(observability.Events())

	out.archive, err = eventlog.Open(cfg.EventLog())
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("open event archive: %w", err)
	}
	out.core.SetArchive(out.archive)

	plan, err := cfg.Plan()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("resolve deployment plan: %w", err)
	}
	receipt, err := out.core.Deploy(plan)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("deploy: %w", err)
	}
	deployment, _ := out.core.Deployment()
	attrs := []any{
		slog.String("network", deployment.Network),
		slog.String("sale", crypto.FormatAddress(deployment.Sale)),
		slog.String("token", crypto.FormatAddress(deployment.Token)),
	}
	if receipt != nil {
		logger.Info("deployed sale", append(attrs, slog.String("receipt", receipt.ID))...)
	} else {
		logger.Info("resumed sale", attrs...)
	}
	return out, nil
}

// telemetryConfig maps the [telemetry] section onto the OTLP exporter
// settings.
func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName: "onlsd",
		Environment: cfg.Environment,
		Endpoint:    strings.TrimSpace(cfg.Telemetry.OTLPEndpoint),
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	otelCfg := telemetryConfig(cfg)
	shutdownTelemetry, err := telemetry.Init(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()
	if otelCfg.Enabled() {
		logger.Info("exporting telemetry", slog.String("endpoint", otelCfg.Endpoint),
			slog.Bool("traces", otelCfg.Traces), slog.Bool("metrics", otelCfg.Metrics))
	}

	n, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	token := cfg.RPCAuthToken()
	if token == "" {
		logger.Warn("RPC auth token not set; owner methods are disabled", slog.String("env", cfg.RPCAuthTokenEnv))
	}
	server := rpc.NewServer(n.core, rpc.ServerConfig{
		AuthToken:         token,
		RequestsPerMinute: cfg.RPCRequestsPerMinute,
		Logger:            logger,
		Tracing:           otelCfg.Enabled() && otelCfg.Traces,
	})
	if err := server.Start(ctx, cfg.RPCAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("node shut down")
	return nil
}
