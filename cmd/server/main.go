package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/internal/db"
	"github.com/inventariopro/inventariopro/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	dbConn, err := db.Connect(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg.Database, cfg.App.Migrations, log); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
		log.Info("migrations completed")
		return nil
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("seeding completed")
		return nil
	}

	// SQL migrations when enabled, AutoMigrate in dev
	if cfg.App.Migrations || cfg.App.Dev {
		if err := db.Migrate(dbConn, cfg.Database, cfg.App.Migrations, log); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, dbConn, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("closing clients", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}
