package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/pricing-engine/internal/config"
	"github.com/Simplici0/pricing-engine/internal/db"
	"github.com/Simplici0/pricing-engine/internal/migrations"
	"github.com/Simplici0/pricing-engine/internal/observability"
	"github.com/Simplici0/pricing-engine/internal/refdata"
	"github.com/Simplici0/pricing-engine/internal/seed"
	"github.com/Simplici0/pricing-engine/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	boot, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	cfg := config.Load(boot)
	_ = boot.Sync()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := migrations.Up(ctx, database, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	logger.Info("database ready", zap.String("path", cfg.DBPath), zap.Int64("schema_version", version))

	if cfg.SeedOnStart {
		stats, err := seed.Run(ctx, database, seed.Config{
			DefaultDestination: cfg.DefaultDestination,
			DestinationName:    cfg.DefaultDestinationName,
		})
		if err != nil {
			return err
		}
		logger.Info("seed completed", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))
	}

	st := store.New(database)
	cache, err := refdata.NewCache(refdata.Deps{
		Loader:             st,
		TTL:                cfg.ReferenceCacheTTL,
		Logger:             logger.Named("refdata"),
		DefaultDestination: cfg.DefaultDestination,
	})
	if err != nil {
		return err
	}
	if _, err := cache.Get(ctx); err != nil {
		logger.Warn("reference data not available at startup", zap.Error(err))
	}

	srv := newServer(database, st, cache, logger)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
