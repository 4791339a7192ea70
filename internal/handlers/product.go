package handlers

import (
	"net/http"
	"strings"

	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogHandler serves categories and products.
type CatalogHandler struct {
	Svc *services.CatalogService
	Log *zap.Logger
}

func NewCatalogHandler(svc *services.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{Svc: svc, Log: nopIfNil(log)}
}

func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /categories", h.ListCategories)
	mux.HandleFunc("POST /categories", h.CreateCategory)
	mux.HandleFunc("PUT /categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /categories/{id}", h.DeleteCategory)

	mux.HandleFunc("GET /products", h.ListProducts)
	mux.HandleFunc("POST /products", h.CreateProduct)
	mux.HandleFunc("GET /products/{id}", h.GetProduct)
	mux.HandleFunc("PUT /products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /products/{id}", h.DeleteProduct)
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Svc.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cats)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	c, err := h.Svc.CreateCategory(r.Context(), in.Name)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in categoryRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	c, err := h.Svc.UpdateCategory(r.Context(), id, in.Name)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteCategory(r.Context(), id); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// productRequest accepts price as a JSON number or string ("79.90").
type productRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	CategoryID  *uint           `json:"category_id"`
	Description string          `json:"description"`
	Quantity    *int64          `json:"quantity"`
}

func (p productRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:        p.Name,
		Price:       p.Price,
		Currency:    p.Currency,
		CategoryID:  p.CategoryID,
		Description: p.Description,
		Quantity:    p.Quantity,
	}
}

// ListProducts supports ?q= (name search) and ?category_id=.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f := services.ProductFilter{
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		CategoryID: httpx.QueryID(r, "category_id"),
	}
	products, err := h.Svc.ListProducts(r.Context(), f)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": len(products)})
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	p, err := h.Svc.CreateProduct(r.Context(), in.input())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Svc.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in productRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	p, err := h.Svc.UpdateProduct(r.Context(), id, in.input())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteProduct(r.Context(), id); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
