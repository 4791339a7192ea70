package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/internal/events"
	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLedger moves quantities between global stock and room stock.
// Every mutation runs in a single transaction; global rows are locked
// FOR UPDATE and changed with atomic expressions.
type StockLedger struct {
	DB     *gorm.DB
	Policy string
	Events events.Publisher
	Log    *zap.Logger
}

func NewStockLedger(db *gorm.DB, cfg config.StockConfig, pub events.Publisher, log *zap.Logger) *StockLedger {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	policy := cfg.NegativePolicy
	if policy != config.NegativeStockReject {
		policy = config.NegativeStockAllow
	}
	return &StockLedger{DB: db, Policy: policy, Events: pub, Log: log}
}

type TransferInput struct {
	RoomID    uint
	ProductID uint
	Quantity  int64
}

func (in TransferInput) validate() error {
	v := validation.Violations{}
	validation.RequiredID("room_id", in.RoomID, v)
	validation.RequiredID("product_id", in.ProductID, v)
	validation.PositiveInt("quantity", in.Quantity, v)
	return v.Err()
}

// TransferResult holds both sides of a transfer after commit.
type TransferResult struct {
	RoomStock      models.RoomStock `json:"room_stock"`
	GlobalQuantity int64            `json:"global_quantity"`
}

// Transfer moves Quantity units of a product from global stock into a room.
// The room's row is created when absent and accumulated otherwise.
func (s *StockLedger) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var res TransferResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Room{}, in.RoomID, "room"); err != nil {
			return err
		}
		remaining, err := s.debitGlobal(tx, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}
		rs, err := creditRoom(tx, in.RoomID, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}
		res = TransferResult{RoomStock: rs, GlobalQuantity: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("stock transferred",
		zap.Uint("room_id", in.RoomID),
		zap.Uint("product_id", in.ProductID),
		zap.Int64("quantity", in.Quantity),
		zap.Int64("global_quantity", res.GlobalQuantity))
	s.notify(ctx, events.TopicStockTransferred, in.ProductID, events.StockTransferred{
		RoomID:         in.RoomID,
		ProductID:      in.ProductID,
		Quantity:       in.Quantity,
		GlobalQuantity: res.GlobalQuantity,
		RoomQuantity:   res.RoomStock.Quantity,
	})
	return &res, nil
}

// ReplicateRoom clones a room and its stock into targetEventID, debiting
// global stock by every copied quantity. Either everything is created or
// nothing is. The source room is only read.
func (s *StockLedger) ReplicateRoom(ctx context.Context, sourceRoomID, targetEventID uint) (*models.Room, error) {
	v := validation.Violations{}
	validation.RequiredID("room_id", sourceRoomID, v)
	validation.RequiredID("target_event_id", targetEventID, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var clone models.Room
	var units int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source models.Room
		if err := tx.First(&source, sourceRoomID).Error; err != nil {
			return lookupErr(err, "room", sourceRoomID)
		}
		if err := mustExist(tx, &models.Event{}, targetEventID, "event"); err != nil {
			return err
		}
		// global rows are locked in product order, the same order every
		// caller uses, so concurrent replications cannot deadlock
		var lines []models.RoomStock
		if err := tx.Where("room_id = ?", source.ID).Order("product_id").Find(&lines).Error; err != nil {
			return fmt.Errorf("load stock of room %d: %w", source.ID, err)
		}

		clone = models.Room{Name: source.Name, EventID: targetEventID}
		if err := tx.Create(&clone).Error; err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		for _, line := range lines {
			copied := models.RoomStock{RoomID: clone.ID, ProductID: line.ProductID, Quantity: line.Quantity}
			if err := tx.Create(&copied).Error; err != nil {
				return fmt.Errorf("copy stock of product %d: %w", line.ProductID, err)
			}
			if _, err := s.debitGlobal(tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			clone.Stock = append(clone.Stock, copied)
			units += line.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("room replicated",
		zap.Uint("source_room_id", sourceRoomID),
		zap.Uint("new_room_id", clone.ID),
		zap.Uint("target_event_id", targetEventID),
		zap.Int("lines", len(clone.Stock)))
	s.notify(ctx, events.TopicRoomReplicated, clone.ID, events.RoomReplicated{
		SourceRoomID:  sourceRoomID,
		NewRoomID:     clone.ID,
		TargetEventID: targetEventID,
		Lines:         len(clone.Stock),
		Units:         units,
	})
	return &clone, nil
}

// debitGlobal locks the product's global row and subtracts qty from it,
// returning the new balance.
func (s *StockLedger) debitGlobal(tx *gorm.DB, productID uint, qty int64) (int64, error) {
	var gs models.GlobalStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&gs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: global stock for product %d", ErrNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("lock global stock of product %d: %w", productID, err)
	}
	if s.Policy == config.NegativeStockReject && gs.Quantity < qty {
		return 0, fmt.Errorf("%w: product %d has %d, requested %d", ErrInsufficientStock, productID, gs.Quantity, qty)
	}
	if err := tx.Model(&models.GlobalStock{}).
		Where("id = ?", gs.ID).
		Update("quantity", gorm.Expr("quantity - ?", qty)).Error; err != nil {
		return 0, fmt.Errorf("debit global stock of product %d: %w", productID, err)
	}
	return gs.Quantity - qty, nil
}

// creditRoom adds qty to the (room, product) row, creating it when missing.
func creditRoom(tx *gorm.DB, roomID, productID uint, qty int64) (models.RoomStock, error) {
	var rs models.RoomStock
	res := tx.Model(&models.RoomStock{}).
		Where("room_id = ? AND product_id = ?", roomID, productID).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return rs, fmt.Errorf("credit room %d: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		rs = models.RoomStock{RoomID: roomID, ProductID: productID, Quantity: qty}
		if err := tx.Create(&rs).Error; err != nil {
			return rs, fmt.Errorf("create room stock: %w", err)
		}
		return rs, nil
	}
	if err := tx.Where("room_id = ? AND product_id = ?", roomID, productID).First(&rs).Error; err != nil {
		return rs, fmt.Errorf("reload room stock: %w", err)
	}
	return rs, nil
}

// upsertGlobal sets the product's global quantity, creating the row when missing.
func upsertGlobal(tx *gorm.DB, productID uint, qty int64) (models.GlobalStock, error) {
	var gs models.GlobalStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("product_id = ?", productID).First(&gs).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		gs = models.GlobalStock{ProductID: productID, Quantity: qty}
		if err := tx.Create(&gs).Error; err != nil {
			return gs, fmt.Errorf("create global stock: %w", err)
		}
		return gs, nil
	case err != nil:
		return gs, fmt.Errorf("lock global stock of product %d: %w", productID, err)
	}
	if err := tx.Model(&gs).Update("quantity", qty).Error; err != nil {
		return gs, fmt.Errorf("set global stock of product %d: %w", productID, err)
	}
	gs.Quantity = qty
	return gs, nil
}

func (s *StockLedger) notify(ctx context.Context, topic string, key uint, payload any) {
	if err := s.Events.Publish(ctx, topic, strconv.FormatUint(uint64(key), 10), payload); err != nil {
		s.Log.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// ListGlobal returns every global stock row with its product.
func (s *StockLedger) ListGlobal(ctx context.Context) ([]models.GlobalStock, error) {
	var out []models.GlobalStock
	if err := s.DB.WithContext(ctx).Preload("Product").Order("product_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list global stock: %w", err)
	}
	return out, nil
}

// GlobalByProduct returns the product's global stock row.
func (s *StockLedger) GlobalByProduct(ctx context.Context, productID uint) (*models.GlobalStock, error) {
	var gs models.GlobalStock
	if err := s.DB.WithContext(ctx).Preload("Product").Where("product_id = ?", productID).First(&gs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: global stock for product %d", ErrNotFound, productID)
		}
		return nil, err
	}
	return &gs, nil
}

// SetGlobalQuantity overwrites the product's global quantity (one row per product).
func (s *StockLedger) SetGlobalQuantity(ctx context.Context, productID uint, qty int64) (*models.GlobalStock, error) {
	v := validation.Violations{}
	validation.RequiredID("product_id", productID, v)
	validation.NonNegativeInt("quantity", qty, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var gs models.GlobalStock
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Product{}, productID, "product"); err != nil {
			return err
		}
		var err error
		gs, err = upsertGlobal(tx, productID, qty)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("global stock set", zap.Uint("product_id", productID), zap.Int64("quantity", qty))
	return &gs, nil
}

func (s *StockLedger) DeleteGlobal(ctx context.Context, productID uint) error {
	res := s.DB.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.GlobalStock{})
	if res.Error != nil {
		return fmt.Errorf("delete global stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: global stock for product %d", ErrNotFound, productID)
	}
	return nil
}

// ListRoomStock returns the stock lines of a room with their products.
func (s *StockLedger) ListRoomStock(ctx context.Context, roomID uint) ([]models.RoomStock, error) {
	db := s.DB.WithContext(ctx)
	if err := mustExist(db, &models.Room{}, roomID, "room"); err != nil {
		return nil, err
	}
	var out []models.RoomStock
	if err := db.Preload("Product").Where("room_id = ?", roomID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list room stock: %w", err)
	}
	return out, nil
}

// SetRoomQuantity edits a room line directly. Global stock is not adjusted.
func (s *StockLedger) SetRoomQuantity(ctx context.Context, roomID, productID uint, qty int64) (*models.RoomStock, error) {
	v := validation.Violations{}
	validation.NonNegativeInt("quantity", qty, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var rs models.RoomStock
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ? AND product_id = ?", roomID, productID).First(&rs).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d in room %d", ErrNotFound, productID, roomID)
			}
			return err
		}
		if err := tx.Model(&rs).Update("quantity", qty).Error; err != nil {
			return err
		}
		rs.Quantity = qty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *StockLedger) DeleteRoomStock(ctx context.Context, roomID, productID uint) error {
	res := s.DB.WithContext(ctx).Where("room_id = ? AND product_id = ?", roomID, productID).Delete(&models.RoomStock{})
	if res.Error != nil {
		return fmt.Errorf("delete room stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product %d in room %d", ErrNotFound, productID, roomID)
	}
	return nil
}
