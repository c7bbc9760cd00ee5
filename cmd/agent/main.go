package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hfi/credential-capture-agent/internal/admin"
	"github.com/hfi/credential-capture-agent/internal/agent"
	"github.com/hfi/credential-capture-agent/internal/audit"
	"github.com/hfi/credential-capture-agent/internal/config"
	"github.com/hfi/credential-capture-agent/internal/ingest"
	"github.com/hfi/credential-capture-agent/internal/records"
	"github.com/hfi/credential-capture-agent/internal/relay"
	"github.com/hfi/credential-capture-agent/internal/server"
	"github.com/hfi/credential-capture-agent/internal/storage"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("Credential Capture Agent %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.With().Str("version", Version).Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("agent exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	store, temp, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	defer temp.Close()

	trail, err := audit.NewLogger(&cfg.Logging.Audit)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	defer trail.Close()

	notifier := relay.NewBroadcast(logger)

	ag, err := agent.New(cfg, store, temp, notifier, logger, trail)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ag.Run(ctx)
	defer ag.Close()

	// Pick up an attempt persisted by a previous run before serving.
	if restored, err := ag.Rehydrate(ctx); err != nil {
		logger.Warn().Err(err).Msg("rehydration failed")
	} else if restored {
		logger.Info().Msg("pending attempt rehydrated")
	}

	upserter := records.NewUpserter(store, logger, trail)
	srv := server.New(server.Config{
		Listen:          cfg.Server.Listen,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		Version:         Version,
	},
		ingest.NewHandler(ag, logger),
		admin.NewHandler(store, upserter, notifier, logger),
		logger,
	)
	srv.RegisterHealthCheck("record_store", func() (bool, string) {
		if _, err := store.Count(context.Background()); err != nil {
			return false, err.Error()
		}
		return true, "ok"
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Str("listen", cfg.Server.Listen).Str("storage", cfg.Storage.Type).Msg("capture agent started")

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// openStores selects the record store and temp slot backends from config.
// SQLite keeps the record collection durable while the temp slot stays in
// memory; Redis backs both.
func openStores(cfg *config.Config) (storage.RecordStore, storage.TempSlot, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		return storage.NewMemoryRecordStore(), storage.NewMemoryTempSlot(), nil
	case "redis":
		r := cfg.Storage.Redis
		store, err := storage.NewRedisRecordStore(r.Address, r.Password, r.DB)
		if err != nil {
			return nil, nil, err
		}
		temp, err := storage.NewRedisTempSlot(r.Address, r.Password, r.DB, cfg.Correlation.PendingTTL)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, temp, nil
	case "sqlite":
		store, err := storage.NewSQLiteRecordStore(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, storage.NewMemoryTempSlot(), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
