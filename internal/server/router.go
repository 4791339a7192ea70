package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/assistant"
	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/internal/events"
	"github.com/inventariopro/inventariopro/internal/handlers"
	"github.com/inventariopro/inventariopro/internal/services"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Stock     config.StockConfig
	Publisher events.Publisher
	Assistant *assistant.Assistant
	// AssistantRate is a limiter rate such as "20-M"; empty disables limiting.
	AssistantRate string
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) (http.Handler, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	db := d.DB
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			log.Warn("health check failed", zap.Error(err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	eventSvc := services.NewEventService(db, log)
	ledger := services.NewStockLedger(db, d.Stock, d.Publisher, log)

	handlers.NewCatalogHandler(services.NewCatalogService(db, log), log).Register(mux)
	handlers.NewEventHandler(eventSvc, log).Register(mux)
	handlers.NewStockHandler(ledger, eventSvc, log).Register(mux)
	handlers.NewProposalHandler(services.NewProposalService(db, log), log).Register(mux)

	if d.Assistant != nil {
		limit, err := rateLimit(d.AssistantRate)
		if err != nil {
			return nil, err
		}
		ah := handlers.NewAssistantHandler(d.Assistant, log)
		mux.Handle("POST /assistant/faq", limit(http.HandlerFunc(ah.FAQ)))
		mux.Handle("POST /assistant/event-description", limit(http.HandlerFunc(ah.EventDescription)))
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"service": "inventariopro"})
	})

	return withRequestID(withLogging(log, withRecover(log, mux))), nil
}

// rateLimit builds a per-client-IP limiter from a formatted rate ("20-M").
func rateLimit(formatted string) (func(http.Handler) http.Handler, error) {
	if formatted == "" {
		return func(h http.Handler) http.Handler { return h }, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("assistant rate limit %q: %w", formatted, err)
	}
	mw := stdlib.NewMiddleware(limiter.New(memory.NewStore(), rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.JSONError(w, http.StatusTooManyRequests, "rate_limited", nil)
		}))
	return mw.Handler, nil
}

const requestIDHeader = "X-Request-ID"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("request_id", r.Header.Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func withRecover(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", r.Header.Get(requestIDHeader)),
					zap.Stack("stack"))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
