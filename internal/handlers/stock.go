package handlers

import (
	"net/http"

	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/services"
	"github.com/inventariopro/inventariopro/validation"
	"go.uber.org/zap"
)

// StockHandler serves global stock, room stock, transfers and room replication.
type StockHandler struct {
	Ledger *services.StockLedger
	Events *services.EventService
	Log    *zap.Logger
}

func NewStockHandler(ledger *services.StockLedger, events *services.EventService, log *zap.Logger) *StockHandler {
	return &StockHandler{Ledger: ledger, Events: events, Log: nopIfNil(log)}
}

func (h *StockHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /stock", h.ListGlobal)
	mux.HandleFunc("PUT /stock/{productID}", h.SetGlobal)
	mux.HandleFunc("DELETE /stock/{productID}", h.DeleteGlobal)

	mux.HandleFunc("GET /rooms/{id}/stock", h.ListRoom)
	mux.HandleFunc("POST /rooms/{id}/stock", h.Transfer)
	mux.HandleFunc("PUT /rooms/{id}/stock/{productID}", h.SetRoom)
	mux.HandleFunc("DELETE /rooms/{id}/stock/{productID}", h.DeleteRoom)
	mux.HandleFunc("POST /rooms/{id}/replicate", h.Replicate)
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type transferRequest struct {
	ProductID uint  `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type replicateRequest struct {
	TargetEventID uint `json:"target_event_id"`
}

func (h *StockHandler) ListGlobal(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Ledger.ListGlobal(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *StockHandler) SetGlobal(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var in quantityRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	gs, err := h.Ledger.SetGlobalQuantity(r.Context(), productID, in.Quantity)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, gs)
}

func (h *StockHandler) DeleteGlobal(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteGlobal(r.Context(), productID); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StockHandler) ListRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rows, err := h.Ledger.ListRoomStock(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// Transfer moves units from global stock into the room.
func (h *StockHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in transferRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	res, err := h.Ledger.Transfer(r.Context(), services.TransferInput{RoomID: roomID, ProductID: in.ProductID, Quantity: in.Quantity})
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *StockHandler) SetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var in quantityRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	rs, err := h.Ledger.SetRoomQuantity(r.Context(), roomID, productID, in.Quantity)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rs)
}

func (h *StockHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteRoomStock(r.Context(), roomID, productID); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Replicate copies the room into another event. Replicating into the
// room's own event is refused.
func (h *StockHandler) Replicate(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in replicateRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	source, err := h.Events.GetRoom(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	if in.TargetEventID == source.EventID {
		writeServiceError(w, h.Log, validation.Violations{"target_event_id": "same_as_source"}.Err())
		return
	}
	room, err := h.Ledger.ReplicateRoom(r.Context(), roomID, in.TargetEventID)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, room)
}
