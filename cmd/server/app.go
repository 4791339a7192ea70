package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/inventariopro/inventariopro/internal/assistant"
	"github.com/inventariopro/inventariopro/internal/cache"
	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/internal/events"
	"github.com/inventariopro/inventariopro/internal/server"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App owns the HTTP handler and the outbound clients it depends on.
type App struct {
	Handler http.Handler
	log     *zap.Logger
	closers []func() error
}

// NewApp wires the optional collaborators around db. Kafka and redis are
// used only when configured; when they cannot be reached the app degrades to
// dropping notifications and caching in memory.
func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*App, error) {
	app := &App{log: log}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.Dial(cfg.Kafka, log)
		if err != nil {
			log.Error("kafka unavailable, stock notifications disabled", zap.Error(err))
		} else {
			publisher = kp
			app.closers = append(app.closers, kp.Close)
		}
	}

	var answers cache.Cache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, using in-memory assistant cache", zap.Error(err))
		} else {
			answers = rc
			app.closers = append(app.closers, rc.Close)
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if cfg.AI.APIKey == "" {
		log.Warn("no AI API key configured, assistant will answer with the fallback text", zap.String("provider", cfg.AI.Provider))
	}
	helper := assistant.New(assistant.NewOpenAIGenerator(cfg.AI), answers, cfg.Redis.TTL, log)

	h, err := server.New(server.Deps{
		DB:            db,
		Log:           log,
		Stock:         cfg.Stock,
		Publisher:     publisher,
		Assistant:     helper,
		AssistantRate: cfg.RateLimit.Assistant,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Handler = h
	return app, nil
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Handler.ServeHTTP(w, r)
}

// Close releases the outbound clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
