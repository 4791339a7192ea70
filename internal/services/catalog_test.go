package services

import (
	"context"
	"errors"
	"testing"

	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

func TestCreateProductWithInitialStock(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCatalogService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, " Mobiliário ")
	if err != nil {
		t.Fatalf("category: %v", err)
	}

	p, err := svc.CreateProduct(ctx, ProductInput{
		Name:       "Cadeira Tiffany",
		Price:      decimal.RequireFromString("79.999"),
		CategoryID: &cat.ID,
		Quantity:   qty(120),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if p.Currency != "BRL" {
		t.Errorf("currency = %q, want BRL", p.Currency)
	}
	if !p.Price.Equal(decimal.RequireFromString("80")) {
		t.Errorf("price = %s, want 80.00", p.Price)
	}
	if p.Stock != 120 || globalQty(t, db, p.ID) != 120 {
		t.Errorf("stock = %d, want 120", p.Stock)
	}

	// editing the product with a quantity overwrites the same global row
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductInput{Name: "Cadeira Tiffany", Price: decimal.NewFromInt(85), Quantity: qty(90)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stock != 90 || updated.CategoryID != nil || count(t, db, &models.GlobalStock{}) != 1 {
		t.Fatalf("unexpected product after update: %+v", updated)
	}
}

func TestProductValidation(t *testing.T) {
	svc := NewCatalogService(setupTestDB(t), nil)
	_, err := svc.CreateProduct(context.Background(), ProductInput{Name: " ", Price: decimal.NewFromInt(-1), Currency: "REAL", Quantity: qty(-2)})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "price", "currency", "quantity"} {
		if _, ok := verr.Violations[field]; !ok {
			t.Errorf("missing violation for %s: %v", field, verr.Violations)
		}
	}
	missing := uint(42)
	if _, err := svc.CreateProduct(context.Background(), ProductInput{Name: "X", CategoryID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown category: expected ErrNotFound, got %v", err)
	}
}

func TestListProducts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	seedProduct(t, db, "Mesa redonda", "200", qty(8))
	seedProduct(t, db, "Cadeira", "80", nil)

	all, err := svc.ListProducts(ctx, ProductFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Cadeira" || all[0].Stock != 0 || all[1].Stock != 8 {
		t.Fatalf("unexpected list: %+v", all)
	}
	found, err := svc.ListProducts(ctx, ProductFilter{Query: "MESA"})
	if err != nil || len(found) != 1 || found[0].Name != "Mesa redonda" {
		t.Fatalf("search: %v %+v", err, found)
	}
}

func TestDeleteProductInUse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	p := seedProduct(t, db, "Projetor", "1200", qty(3))
	event, room := seedEventRoom(t, db, "Congresso", "Auditório")
	proposal := models.Proposal{EventID: event.ID}
	db.Create(&proposal)
	db.Create(&models.ProposalItem{ProposalID: proposal.ID, RoomID: room.ID, ProductID: p.ID})

	if err := svc.DeleteProduct(ctx, p.ID); !errors.Is(err, ErrProductInUse) {
		t.Fatalf("expected ErrProductInUse, got %v", err)
	}

	free := seedProduct(t, db, "Tapete", "60", qty(2))
	db.Create(&models.RoomStock{RoomID: room.ID, ProductID: free.ID, Quantity: 1})
	if err := svc.DeleteProduct(ctx, free.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var left int64
	db.Model(&models.GlobalStock{}).Where("product_id = ?", free.ID).Count(&left)
	if left != 0 {
		t.Fatal("global stock of deleted product left behind")
	}
	db.Model(&models.RoomStock{}).Where("product_id = ?", free.ID).Count(&left)
	if left != 0 {
		t.Fatal("room stock of deleted product left behind")
	}
	if _, err := svc.GetProduct(ctx, free.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCategoryDetachesProducts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	cat, _ := svc.CreateCategory(ctx, "Iluminação")
	p, err := svc.CreateProduct(ctx, ProductInput{Name: "Refletor", Price: decimal.NewFromInt(250), CategoryID: &cat.ID})
	if err != nil {
		t.Fatalf("product: %v", err)
	}

	if err := svc.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	got, err := svc.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("product should survive: %v", err)
	}
	if got.CategoryID != nil {
		t.Fatalf("category_id = %v, want nil", *got.CategoryID)
	}
	if err := svc.DeleteCategory(ctx, cat.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
