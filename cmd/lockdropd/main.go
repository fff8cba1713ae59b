package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lockdrop/config"
	"lockdrop/core"
	"lockdrop/core/events"
	"lockdrop/observability/logging"
	telemetry "lockdrop/observability/otel"
	"lockdrop/rpc"
	"lockdrop/rpc/middleware"
	"lockdrop/storage"
	"lockdrop/storage/eventlog"
)

const (
	serviceName = "lockdropd"
	envVar      = "LOCKDROP_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	lockdropFlag := flag.String("lockdrop", "", "Path to the lockdrop parameter file (overrides config LockdropFile)")
	exportFlag := flag.String("export-events", "", "Write the event log to a parquet file and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *lockdropFlag, *exportFlag); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, lockdropPath, exportPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := firstNonEmpty(os.Getenv(envVar), cfg.Environment)
	logger := logging.Setup(serviceName, env, logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	dsn, err := resolveEventLogDSN(cfg)
	if err != nil {
		return err
	}
	store, err := eventlog.Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := verifyEventLog(store, logger); err != nil {
		return err
	}
	if strings.TrimSpace(exportPath) != "" {
		return exportEvents(store, exportPath, logger)
	}

	node, err := core.NewNode(db)
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	node.SetLogger(logger)
	node.SetEventLog(store)
	var hub *events.Hub
	if !cfg.EventStream.Disabled {
		hub = events.NewHub()
		node.SetEventSink(hub)
	}

	if err := bootstrap(ctx, node, firstNonEmpty(lockdropPath, cfg.LockdropPath()), logger); err != nil {
		return err
	}

	server := rpc.NewServer(node, rpc.Config{
		Auth: middleware.AuthConfig{
			Enabled:    cfg.RPCAuth.Enabled(),
			HMACSecret: cfg.RPCAuth.HMACSecret,
			Issuer:     cfg.RPCAuth.Issuer,
			Audience:   cfg.RPCAuth.Audience,
		},
		RateLimit: middleware.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		ReadHeaderTimeout: time.Duration(cfg.RPCReadHeaderTimeout) * time.Second,
		Logger:            logger,
		Events:            hub,
		OriginPatterns:    cfg.EventStream.OriginPatterns,
	})
	return server.Serve(ctx, cfg.RPCAddress)
}

// bootstrap applies the lockdrop genesis on first start. A node that already
// holds a lockdrop config ignores the parameter file.
func bootstrap(ctx context.Context, node *core.Node, path string, logger *slog.Logger) error {
	initialized, err := node.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("inspect state: %w", err)
	}
	if initialized {
		logger.Info("lockdrop state found, skipping genesis")
		return nil
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("lockdrop parameter file required on first start")
	}
	file, err := config.LoadLockdrop(path)
	if err != nil {
		return err
	}
	g, err := file.Genesis()
	if err != nil {
		return err
	}
	if err := node.ApplyGenesis(ctx, g); err != nil {
		return err
	}
	logger.Info("lockdrop genesis applied",
		slog.String("path", path),
		slog.String("deposit_token", g.Lockdrop.DepositToken),
		slog.Int64("init_time", g.Lockdrop.InitTimestamp))
	return nil
}

// verifyEventLog refuses to start on an event log whose digest chain does not
// recompute.
func verifyEventLog(store *eventlog.Store, logger *slog.Logger) error {
	checked, err := store.Verify()
	if err != nil {
		return fmt.Errorf("verify event log: %w", err)
	}
	_, head := store.Head()
	logger.Info("event log verified", slog.Uint64("records", checked), slog.String("head", head))
	return nil
}

func exportEvents(store *eventlog.Store, path string, logger *slog.Logger) error {
	written, err := store.ExportParquet(path)
	if err != nil {
		return err
	}
	logger.Info("event log exported", slog.String("path", path), slog.Int("records", written))
	return nil
}

// resolveEventLogDSN defaults the event log to a SQLite file inside the data
// directory.
func resolveEventLogDSN(cfg *config.Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.EventLogDSN); dsn != "" {
		return dsn, nil
	}
	return eventlog.FileDSN(filepath.Join(cfg.DataDir, "events.db"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
