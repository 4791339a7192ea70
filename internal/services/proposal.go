package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var maxTaxPercent = decimal.NewFromInt(100)

// ProposalService manages proposals and their line items.
type ProposalService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewProposalService(db *gorm.DB, log *zap.Logger) *ProposalService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProposalService{DB: db, Log: log}
}

// ProposalSummary is a proposal with its derived totals.
type ProposalSummary struct {
	models.Proposal
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Summarize computes the totals of a loaded proposal.
func Summarize(p *models.Proposal) ProposalSummary {
	return ProposalSummary{
		Proposal:  *p,
		Subtotal:  p.Subtotal(),
		TaxAmount: p.TaxAmount(),
		Total:     p.Total(),
	}
}

type ProposalInput struct {
	EventID     uint
	TaxPercent  decimal.Decimal
	Description string
}

func validateTax(tax decimal.Decimal, v validation.Violations) {
	validation.RangeDecimal("tax_percent", tax, decimal.Zero, maxTaxPercent, v)
}

func (s *ProposalService) Create(ctx context.Context, in ProposalInput) (*ProposalSummary, error) {
	v := validation.Violations{}
	validation.RequiredID("event_id", in.EventID, v)
	validateTax(in.TaxPercent, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if err := mustExist(db, &models.Event{}, in.EventID, "event"); err != nil {
		return nil, err
	}
	p := models.Proposal{EventID: in.EventID, TaxPercent: in.TaxPercent.Round(2), Description: in.Description}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	s.Log.Info("proposal created", zap.Uint("proposal_id", p.ID), zap.Uint("event_id", p.EventID))
	out := Summarize(&p)
	return &out, nil
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Room").
		Preload("Items.Product")
}

// List returns proposals, optionally restricted to one event.
func (s *ProposalService) List(ctx context.Context, eventID uint) ([]ProposalSummary, error) {
	q := withItems(s.DB.WithContext(ctx)).Order("id DESC")
	if eventID != 0 {
		q = q.Where("event_id = ?", eventID)
	}
	var proposals []models.Proposal
	if err := q.Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	out := make([]ProposalSummary, 0, len(proposals))
	for i := range proposals {
		out = append(out, Summarize(&proposals[i]))
	}
	return out, nil
}

func (s *ProposalService) load(db *gorm.DB, id uint) (*models.Proposal, error) {
	var p models.Proposal
	if err := withItems(db).First(&p, id).Error; err != nil {
		return nil, lookupErr(err, "proposal", id)
	}
	return &p, nil
}

// Get returns the proposal with items and totals computed from them.
func (s *ProposalService) Get(ctx context.Context, id uint) (*ProposalSummary, error) {
	p, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	out := Summarize(p)
	return &out, nil
}

// ProposalUpdate changes the editable fields. The event is fixed at creation
// because line items are bound to its rooms.
type ProposalUpdate struct {
	TaxPercent  decimal.Decimal
	Description string
}

func (s *ProposalService) Update(ctx context.Context, id uint, in ProposalUpdate) (*ProposalSummary, error) {
	v := validation.Violations{}
	validateTax(in.TaxPercent, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if err := mustExist(db, &models.Proposal{}, id, "proposal"); err != nil {
		return nil, err
	}
	err := db.Model(&models.Proposal{ID: id}).
		Select("TaxPercent", "Description").
		Updates(models.Proposal{TaxPercent: in.TaxPercent.Round(2), Description: in.Description}).Error
	if err != nil {
		return nil, fmt.Errorf("update proposal: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *ProposalService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Proposal{}, id, "proposal"); err != nil {
			return err
		}
		if err := tx.Where("proposal_id = ?", id).Delete(&models.ProposalItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Proposal{}, id).Error
	})
}

// ItemInput adds a product placed in a room. Quantity 0 means 1. A nil or
// zero UnitPrice snapshots the product's current price.
type ItemInput struct {
	RoomID    uint
	ProductID uint
	Quantity  int
	UnitPrice *decimal.Decimal
}

func (s *ProposalService) AddItem(ctx context.Context, proposalID uint, in ItemInput) (*models.ProposalItem, error) {
	v := validation.Violations{}
	validation.RequiredID("room_id", in.RoomID, v)
	validation.RequiredID("product_id", in.ProductID, v)
	if in.Quantity < 0 {
		v["quantity"] = "must_be_positive"
	}
	if in.UnitPrice != nil {
		validation.NonNegativeDecimal("unit_price", *in.UnitPrice, v)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var item models.ProposalItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := tx.First(&p, proposalID).Error; err != nil {
			return lookupErr(err, "proposal", proposalID)
		}
		var room models.Room
		if err := tx.First(&room, in.RoomID).Error; err != nil {
			return lookupErr(err, "room", in.RoomID)
		}
		if room.EventID != p.EventID {
			return validation.Violations{"room_id": "not_in_proposal_event"}.Err()
		}
		if err := mustExist(tx, &models.Product{}, in.ProductID, "product"); err != nil {
			return err
		}
		item = models.ProposalItem{ProposalID: p.ID, RoomID: room.ID, ProductID: in.ProductID, Quantity: in.Quantity}
		if in.UnitPrice != nil {
			item.UnitPrice = in.UnitPrice.Round(2)
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("create proposal item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("proposal item added",
		zap.Uint("proposal_id", proposalID),
		zap.Uint("product_id", item.ProductID),
		zap.String("unit_price", item.UnitPrice.StringFixed(2)))
	return &item, nil
}

func (s *ProposalService) findItem(db *gorm.DB, proposalID, itemID uint) (*models.ProposalItem, error) {
	var item models.ProposalItem
	if err := db.Where("proposal_id = ?", proposalID).First(&item, itemID).Error; err != nil {
		return nil, lookupErr(err, "proposal item", itemID)
	}
	return &item, nil
}

// UpdateItemQuantity changes the quantity of a line; the unit price stays frozen.
func (s *ProposalService) UpdateItemQuantity(ctx context.Context, proposalID, itemID uint, qty int) (*models.ProposalItem, error) {
	v := validation.Violations{}
	validation.PositiveInt("quantity", int64(qty), v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	item, err := s.findItem(db, proposalID, itemID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(item).Update("quantity", qty).Error; err != nil {
		return nil, fmt.Errorf("update proposal item: %w", err)
	}
	item.Quantity = qty
	return item, nil
}

func (s *ProposalService) RemoveItem(ctx context.Context, proposalID, itemID uint) error {
	db := s.DB.WithContext(ctx)
	item, err := s.findItem(db, proposalID, itemID)
	if err != nil {
		return err
	}
	return db.Delete(item).Error
}

// RoomGroup is the part of a proposal placed in one room.
type RoomGroup struct {
	RoomID   uint                  `json:"room_id"`
	RoomName string                `json:"room_name"`
	Items    []models.ProposalItem `json:"items"`
	Subtotal decimal.Decimal       `json:"subtotal"`
}

// Breakdown is a proposal's items grouped by room, with the proposal totals.
type Breakdown struct {
	ProposalID uint            `json:"proposal_id"`
	EventID    uint            `json:"event_id"`
	Rooms      []RoomGroup     `json:"rooms"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	Total      decimal.Decimal `json:"total"`
}

// Breakdown groups the items by room, rooms ordered by name.
func (s *ProposalService) Breakdown(ctx context.Context, id uint) (*Breakdown, error) {
	p, err := s.load(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	byRoom := map[uint]*RoomGroup{}
	var order []*RoomGroup
	for _, item := range p.Items {
		g, ok := byRoom[item.RoomID]
		if !ok {
			g = &RoomGroup{RoomID: item.RoomID, Subtotal: decimal.Zero}
			if item.Room != nil {
				g.RoomName = item.Room.Name
			}
			byRoom[item.RoomID] = g
			order = append(order, g)
		}
		g.Items = append(g.Items, item)
		g.Subtotal = g.Subtotal.Add(item.LineTotal())
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].RoomName != order[j].RoomName {
			return order[i].RoomName < order[j].RoomName
		}
		return order[i].RoomID < order[j].RoomID
	})
	out := &Breakdown{
		ProposalID: p.ID,
		EventID:    p.EventID,
		Rooms:      make([]RoomGroup, 0, len(order)),
		Subtotal:   p.Subtotal(),
		TaxAmount:  p.TaxAmount(),
		Total:      p.Total(),
	}
	for _, g := range order {
		out.Rooms = append(out.Rooms, *g)
	}
	return out, nil
}
