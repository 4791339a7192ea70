package handlers

import (
	"errors"
	"net/http"

	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/internal/services"
	"github.com/inventariopro/inventariopro/validation"
	"go.uber.org/zap"
)

// writeServiceError maps service errors onto JSON error responses.
// Anything unrecognised is logged and reported as internal_error.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Violations)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.JSONError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, services.ErrProductInUse):
		httpx.JSONError(w, http.StatusConflict, "product_in_use", nil)
	case errors.Is(err, models.ErrUnitPriceFrozen):
		httpx.JSONError(w, http.StatusConflict, "unit_price_frozen", nil)
	default:
		log.Error("request failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func badJSON(w http.ResponseWriter) {
	httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
}

// pathID reads a positive id path value, answering 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, ok := httpx.PathID(r, name)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", map[string]string{name: r.PathValue(name)})
	}
	return id, ok
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
