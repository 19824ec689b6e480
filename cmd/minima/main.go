package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/minimahq/minima/api"
	"github.com/minimahq/minima/internal/auth"
	"github.com/minimahq/minima/internal/config"
	"github.com/minimahq/minima/internal/ratelimit"
	"github.com/minimahq/minima/internal/remote"
	"github.com/minimahq/minima/internal/server"
	"github.com/minimahq/minima/internal/service/keys"
	"github.com/minimahq/minima/internal/service/syncer"
	"github.com/minimahq/minima/internal/storage"
	"github.com/minimahq/minima/internal/telemetry"
	"github.com/minimahq/minima/internal/vault"
	"github.com/minimahq/minima/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("MINIMA_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("minima starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	// RunMigrations tracks applied files in schema_migrations and skips
	// duplicates, so errors here indicate real failures.
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// The vault refuses to start without a master secret. Fail here, at
	// boot, rather than on the first credential operation.
	v, err := vault.New(cfg.VaultMasterKey)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.AuthJWTSecret)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	keySvc := keys.New(db, v, logger)
	optimizer := remote.New(cfg.OptimizerURL, cfg.OptimizerTimeout, logger)
	syncSvc := syncer.New(db, optimizer, keySvc, logger, cfg.SyncWindow, cfg.SyncConcurrency)

	// Sync endpoints proxy into the remote optimizer, so they are limited
	// per owner. 2 rps sustained with a small burst covers dashboard use.
	limiter := ratelimit.NewMemoryLimiter(2, 10)
	defer func() { _ = limiter.Close() }()

	srv := server.New(server.ServerConfig{
		Store:               db,
		KeySvc:              keySvc,
		SyncSvc:             syncSvc,
		Pinger:              db,
		Verifier:            verifier,
		Limiter:             limiter,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("minima shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("minima stopped")
	return nil
}
