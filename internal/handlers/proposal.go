package handlers

import (
	"net/http"

	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProposalHandler serves proposals, their line items and the per-room breakdown.
type ProposalHandler struct {
	Svc *services.ProposalService
	Log *zap.Logger
}

func NewProposalHandler(svc *services.ProposalService, log *zap.Logger) *ProposalHandler {
	return &ProposalHandler{Svc: svc, Log: nopIfNil(log)}
}

func (h *ProposalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /proposals", h.List)
	mux.HandleFunc("POST /proposals", h.Create)
	mux.HandleFunc("GET /proposals/{id}", h.Get)
	mux.HandleFunc("PUT /proposals/{id}", h.Update)
	mux.HandleFunc("DELETE /proposals/{id}", h.Delete)
	mux.HandleFunc("GET /proposals/{id}/breakdown", h.Breakdown)

	mux.HandleFunc("POST /proposals/{id}/items", h.AddItem)
	mux.HandleFunc("PUT /proposals/{id}/items/{itemID}", h.UpdateItem)
	mux.HandleFunc("DELETE /proposals/{id}/items/{itemID}", h.RemoveItem)
}

type proposalRequest struct {
	EventID     uint            `json:"event_id"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	Description string          `json:"description"`
}

type proposalUpdateRequest struct {
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	Description string          `json:"description"`
}

// itemRequest leaves unit_price empty to snapshot the product's current price.
type itemRequest struct {
	RoomID    uint             `json:"room_id"`
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type itemUpdateRequest struct {
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// List filters by ?event_id= when given.
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.List(r.Context(), httpx.QueryID(r, "event_id"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in proposalRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	p, err := h.Svc.Create(r.Context(), services.ProposalInput{EventID: in.EventID, TaxPercent: in.TaxPercent, Description: in.Description})
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in proposalUpdateRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	p, err := h.Svc.Update(r.Context(), id, services.ProposalUpdate{TaxPercent: in.TaxPercent, Description: in.Description})
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProposalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProposalHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Svc.Breakdown(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *ProposalHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in itemRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	item, err := h.Svc.AddItem(r.Context(), id, services.ItemInput{
		RoomID:    in.RoomID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
	})
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

// UpdateItem changes a line's quantity. Sending unit_price is refused:
// the price captured when the line was added never changes.
func (h *ProposalHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var in itemUpdateRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	if in.UnitPrice != nil {
		writeServiceError(w, h.Log, models.ErrUnitPriceFrozen)
		return
	}
	item, err := h.Svc.UpdateItemQuantity(r.Context(), id, itemID, in.Quantity)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *ProposalHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), id, itemID); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
