package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

// setupFileDB opens a file-backed database so several connections can run
// transactions against it at once.
func setupFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(
		&models.Category{}, &models.Product{}, &models.GlobalStock{},
		&models.Event{}, &models.Room{}, &models.RoomStock{},
		&models.Proposal{}, &models.ProposalItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, global *int64) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.RequireFromString(price), Currency: models.DefaultCurrency}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if global != nil {
		if err := db.Create(&models.GlobalStock{ProductID: p.ID, Quantity: *global}).Error; err != nil {
			t.Fatalf("seed global stock: %v", err)
		}
	}
	return p
}

func seedEventRoom(t *testing.T, db *gorm.DB, eventName, roomName string) (models.Event, models.Room) {
	t.Helper()
	e := models.Event{Name: eventName}
	if err := db.Create(&e).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	r := models.Room{Name: roomName, EventID: e.ID}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return e, r
}

func qty(n int64) *int64 { return &n }

func globalQty(t *testing.T, db *gorm.DB, productID uint) int64 {
	t.Helper()
	var gs models.GlobalStock
	if err := db.Where("product_id = ?", productID).First(&gs).Error; err != nil {
		t.Fatalf("load global stock: %v", err)
	}
	return gs.Quantity
}

func roomQty(t *testing.T, db *gorm.DB, roomID, productID uint) int64 {
	t.Helper()
	var rs models.RoomStock
	if err := db.Where("room_id = ? AND product_id = ?", roomID, productID).First(&rs).Error; err != nil {
		t.Fatalf("load room stock: %v", err)
	}
	return rs.Quantity
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

type published struct {
	topic   string
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, key: key, payload: payload})
	return p.err
}
