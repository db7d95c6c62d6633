// Command schema-registry runs the registry server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/streamforge/schema-registry/internal/api"
	"github.com/streamforge/schema-registry/internal/compatibility"
	compatavro "github.com/streamforge/schema-registry/internal/compatibility/avro"
	compatjson "github.com/streamforge/schema-registry/internal/compatibility/jsonschema"
	compatproto "github.com/streamforge/schema-registry/internal/compatibility/protobuf"
	"github.com/streamforge/schema-registry/internal/config"
	"github.com/streamforge/schema-registry/internal/filestore"
	"github.com/streamforge/schema-registry/internal/metrics"
	"github.com/streamforge/schema-registry/internal/registry"
	"github.com/streamforge/schema-registry/internal/schema"
	"github.com/streamforge/schema-registry/internal/schema/avro"
	"github.com/streamforge/schema-registry/internal/schema/jsonschema"
	"github.com/streamforge/schema-registry/internal/schema/protobuf"
	"github.com/streamforge/schema-registry/internal/storage"
	"github.com/streamforge/schema-registry/internal/storage/memory"
	"github.com/streamforge/schema-registry/internal/storage/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := newStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	files, err := filestore.NewLocal(cfg.FileStore.Directory)
	if err != nil {
		return fmt.Errorf("create file store: %w", err)
	}

	providers := schema.NewRegistry()
	providers.Register(avro.NewProvider())
	providers.Register(jsonschema.NewProvider())
	providers.Register(protobuf.NewProvider())

	compat := compatibility.NewChecker()
	compat.Register(schema.TypeAvro, compatavro.NewChecker())
	compat.Register(schema.TypeJSON, compatjson.NewChecker())
	compat.Register(schema.TypeProtobuf, compatproto.NewChecker())

	m := metrics.New(prometheus.DefaultRegisterer)
	store = metrics.InstrumentStore(store, m)

	opts, err := registry.NewOptions(cfg.Options())
	if err != nil {
		return fmt.Errorf("registry options: %w", err)
	}
	reg := registry.New(store, files, providers, compat, opts, m, logger)
	m.RegisterCacheStats(prometheus.DefaultRegisterer, reg.CacheStats)

	janitorDone := make(chan struct{})
	go runCacheJanitor(reg, logger, janitorDone)
	defer close(janitorDone)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(addr, reg, m, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "postgres", "mysql":
		return sqlstore.New(sqlstore.Config{
			Driver:          cfg.Type,
			Host:            cfg.Host,
			Port:            cfg.Port,
			Database:        cfg.Database,
			Username:        cfg.Username,
			Password:        cfg.Password,
			SSLMode:         cfg.SSLMode,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	var level slog.Level
	switch cfg.Level {
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
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func runCacheJanitor(reg *registry.Registry, logger *slog.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if removed := reg.PurgeExpiredCacheEntries(); removed > 0 {
				logger.Debug("purged expired cache entries", "count", removed)
			}
		}
	}
}
