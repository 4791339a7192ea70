package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inventariopro/inventariopro/internal/assistant"
	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Category{}, &models.Product{}, &models.GlobalStock{},
		&models.Event{}, &models.Room{}, &models.RoomStock{},
		&models.Proposal{}, &models.ProposalItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type stubGenerator struct{ reply string }

func (s stubGenerator) Generate(context.Context, assistant.Prompt) (string, error) {
	return s.reply, nil
}

func newTestMux(t *testing.T, db *gorm.DB, policy string) *http.ServeMux {
	t.Helper()
	log := zaptest.NewLogger(t)
	events := services.NewEventService(db, log)
	ledger := services.NewStockLedger(db, config.StockConfig{NegativePolicy: policy}, nil, log)
	mux := http.NewServeMux()
	NewCatalogHandler(services.NewCatalogService(db, log), log).Register(mux)
	NewEventHandler(events, log).Register(mux)
	NewStockHandler(ledger, events, log).Register(mux)
	NewProposalHandler(services.NewProposalService(db, log), log).Register(mux)
	ah := NewAssistantHandler(assistant.New(stubGenerator{reply: "Use a tela de estoque."}, nil, time.Minute, log), log)
	mux.HandleFunc("POST /assistant/faq", ah.FAQ)
	mux.HandleFunc("POST /assistant/event-description", ah.EventDescription)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error
}

func seedStock(t *testing.T, db *gorm.DB, global int64) (models.Product, models.Room) {
	t.Helper()
	p := models.Product{Name: "Cadeira", Price: decimal.NewFromInt(100), Currency: models.DefaultCurrency}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("product: %v", err)
	}
	if err := db.Create(&models.GlobalStock{ProductID: p.ID, Quantity: global}).Error; err != nil {
		t.Fatalf("global: %v", err)
	}
	e := models.Event{Name: "Feira"}
	if err := db.Create(&e).Error; err != nil {
		t.Fatalf("event: %v", err)
	}
	r := models.Room{Name: "Sala A", EventID: e.ID}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("room: %v", err)
	}
	return p, r
}

func TestTransferEndpoint(t *testing.T) {
	db := setupHandlerDB(t)
	mux := newTestMux(t, db, config.NegativeStockReject)
	p, room := seedStock(t, db, 10)
	path := fmt.Sprintf("/rooms/%d/stock", room.ID)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"ok", path, fmt.Sprintf(`{"product_id":%d,"quantity":4}`, p.ID), http.StatusOK, ""},
		{"zero quantity", path, fmt.Sprintf(`{"product_id":%d,"quantity":0}`, p.ID), http.StatusBadRequest, "validation_failed"},
		{"insufficient", path, fmt.Sprintf(`{"product_id":%d,"quantity":7}`, p.ID), http.StatusConflict, "insufficient_stock"},
		{"unknown room", "/rooms/999/stock", fmt.Sprintf(`{"product_id":%d,"quantity":1}`, p.ID), http.StatusNotFound, "not_found"},
		{"bad id", "/rooms/abc/stock", `{}`, http.StatusBadRequest, "invalid_id"},
		{"unknown field", path, `{"product":1}`, http.StatusBadRequest, "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.code != "" && errorCode(t, rec) != tt.code {
				t.Fatalf("error = %s, want %s", rec.Body.String(), tt.code)
			}
		})
	}

	rec := do(t, mux, http.MethodGet, path, "")
	var lines []models.RoomStock
	decodeBody(t, rec, &lines)
	if len(lines) != 1 || lines[0].Quantity != 4 {
		t.Fatalf("room stock = %+v", lines)
	}
}

func TestReplicateEndpoint(t *testing.T) {
	db := setupHandlerDB(t)
	mux := newTestMux(t, db, config.NegativeStockAllow)
	p, room := seedStock(t, db, 10)
	db.Create(&models.RoomStock{RoomID: room.ID, ProductID: p.ID, Quantity: 3})
	target := models.Event{Name: "Congresso"}
	db.Create(&target)
	path := fmt.Sprintf("/rooms/%d/replicate", room.ID)

	rec := do(t, mux, http.MethodPost, path, fmt.Sprintf(`{"target_event_id":%d}`, room.EventID))
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation_failed" {
		t.Fatalf("same event: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodPost, path, fmt.Sprintf(`{"target_event_id":%d}`, target.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("replicate: %d %s", rec.Code, rec.Body.String())
	}
	var clone models.Room
	decodeBody(t, rec, &clone)
	if clone.EventID != target.ID || clone.Name != room.Name || len(clone.Stock) != 1 || clone.Stock[0].Quantity != 3 {
		t.Fatalf("unexpected clone: %+v", clone)
	}

	rec = do(t, mux, http.MethodPost, "/rooms/999/replicate", fmt.Sprintf(`{"target_event_id":%d}`, target.ID))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown room: %d", rec.Code)
	}
}

func TestProposalEndpoints(t *testing.T) {
	db := setupHandlerDB(t)
	mux := newTestMux(t, db, config.NegativeStockAllow)
	p, room := seedStock(t, db, 0)

	rec := do(t, mux, http.MethodPost, "/proposals", fmt.Sprintf(`{"event_id":%d,"tax_percent":"10"}`, room.EventID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created services.ProposalSummary
	decodeBody(t, rec, &created)
	base := fmt.Sprintf("/proposals/%d", created.ID)

	rec = do(t, mux, http.MethodPost, base+"/items", fmt.Sprintf(`{"room_id":%d,"product_id":%d,"quantity":2}`, room.ID, p.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item: %d %s", rec.Code, rec.Body.String())
	}
	var item models.ProposalItem
	decodeBody(t, rec, &item)
	if !item.UnitPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unit price = %s", item.UnitPrice)
	}

	rec = do(t, mux, http.MethodGet, base, "")
	var got services.ProposalSummary
	decodeBody(t, rec, &got)
	if !got.Subtotal.Equal(decimal.NewFromInt(200)) || !got.TaxAmount.Equal(decimal.NewFromInt(20)) || !got.Total.Equal(decimal.NewFromInt(220)) {
		t.Fatalf("totals = %s/%s/%s", got.Subtotal, got.TaxAmount, got.Total)
	}

	itemPath := fmt.Sprintf("%s/items/%d", base, item.ID)
	rec = do(t, mux, http.MethodPut, itemPath, `{"quantity":3,"unit_price":"1"}`)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "unit_price_frozen" {
		t.Fatalf("price change: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodPut, itemPath, `{"quantity":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("quantity change: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodGet, base+"/breakdown", "")
	var b services.Breakdown
	decodeBody(t, rec, &b)
	if len(b.Rooms) != 1 || !b.Total.Equal(decimal.NewFromInt(330)) {
		t.Fatalf("breakdown = %+v", b)
	}

	rec = do(t, mux, http.MethodDelete, fmt.Sprintf("/products/%d", p.ID), "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "product_in_use" {
		t.Fatalf("delete product in use: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodDelete, itemPath, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove item: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodDelete, base, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete proposal: %d", rec.Code)
	}
}

func TestCatalogAndEventEndpoints(t *testing.T) {
	db := setupHandlerDB(t)
	mux := newTestMux(t, db, config.NegativeStockAllow)

	rec := do(t, mux, http.MethodPost, "/categories", `{"name":"Som"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("category: %d %s", rec.Code, rec.Body.String())
	}
	var cat models.Category
	decodeBody(t, rec, &cat)

	rec = do(t, mux, http.MethodPost, "/products", fmt.Sprintf(`{"name":"Caixa de som","price":"349.90","category_id":%d,"quantity":6}`, cat.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("product: %d %s", rec.Code, rec.Body.String())
	}
	var prod services.ProductStock
	decodeBody(t, rec, &prod)
	if prod.Stock != 6 || !prod.Price.Equal(decimal.RequireFromString("349.90")) {
		t.Fatalf("unexpected product: %+v", prod)
	}

	rec = do(t, mux, http.MethodPut, fmt.Sprintf("/stock/%d", prod.ID), `{"quantity":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative global: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodGet, "/products?q=caixa", "")
	var list struct {
		Items []services.ProductStock `json:"items"`
		Total int                     `json:"total"`
	}
	decodeBody(t, rec, &list)
	if list.Total != 1 {
		t.Fatalf("search total = %d", list.Total)
	}

	rec = do(t, mux, http.MethodPost, "/events", `{"name":"Casamento","start_date":"2026-05-02T16:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("event: %d %s", rec.Code, rec.Body.String())
	}
	var ev models.Event
	decodeBody(t, rec, &ev)
	rec = do(t, mux, http.MethodPost, fmt.Sprintf("/events/%d/rooms", ev.ID), `{"name":"Salão"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("room: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/events/%d", ev.ID), "")
	decodeBody(t, rec, &ev)
	if len(ev.Rooms) != 1 {
		t.Fatalf("rooms = %+v", ev.Rooms)
	}
	rec = do(t, mux, http.MethodDelete, fmt.Sprintf("/events/%d", ev.ID), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete event: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/events/%d", ev.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted event: %d", rec.Code)
	}
}

func TestAssistantEndpoints(t *testing.T) {
	mux := newTestMux(t, setupHandlerDB(t), config.NegativeStockAllow)

	rec := do(t, mux, http.MethodPost, "/assistant/faq", `{"question":"Como transfiro estoque?"}`)
	var faq map[string]string
	decodeBody(t, rec, &faq)
	if rec.Code != http.StatusOK || faq["answer"] != "Use a tela de estoque." {
		t.Fatalf("faq: %d %v", rec.Code, faq)
	}
	rec = do(t, mux, http.MethodPost, "/assistant/faq", `{"question":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty question: %d", rec.Code)
	}
	rec = do(t, mux, http.MethodPost, "/assistant/event-description", `{"draft":"festa sabado"}`)
	var d assistant.EventDraft
	decodeBody(t, rec, &d)
	if rec.Code != http.StatusOK || d.Title != "Evento" || d.Description != "Use a tela de estoque." {
		t.Fatalf("draft: %d %+v", rec.Code, d)
	}
}
