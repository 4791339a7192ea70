package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrUnitPriceFrozen is returned when an update tries to change a line item's price snapshot.
var ErrUnitPriceFrozen = errors.New("unit_price_frozen")

var hundred = decimal.NewFromInt(100)

// Proposal is a commercial offer for an event. Totals are derived from the
// loaded items on every call and never stored.
type Proposal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EventID uint   `gorm:"index;not null" json:"event_id"`
	Event   *Event `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`

	// TaxPercent is a percentage in [0, 100], e.g. 10 for 10%.
	TaxPercent  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_percent"`
	Description string          `gorm:"type:text" json:"description,omitempty"`

	Items []ProposalItem `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// Subtotal is the sum of unit price times quantity over all items.
func (p *Proposal) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range p.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// TaxAmount is subtotal × tax_percent / 100, rounded to 2 places.
func (p *Proposal) TaxAmount() decimal.Decimal {
	return p.Subtotal().Mul(p.TaxPercent).Div(hundred).Round(2)
}

// Total is subtotal plus tax, rounded to 2 places.
func (p *Proposal) Total() decimal.Decimal {
	return p.Subtotal().Add(p.TaxAmount()).Round(2)
}

// ProposalItem places a quantity of a product in a room of the proposal's event.
// UnitPrice is a snapshot of the product price taken when the item is created.
type ProposalItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProposalID uint      `gorm:"index;not null" json:"proposal_id"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	RoomID uint  `gorm:"index;not null" json:"room_id"`
	Room   *Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"room,omitempty"`

	ProductID uint     `gorm:"index;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"product,omitempty"`

	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"<-:create;type:decimal(14,2);not null" json:"unit_price"`
}

// LineTotal is unit price × quantity rounded to 2 places.
func (item *ProposalItem) LineTotal() decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}

// BeforeCreate defaults the quantity and snapshots the product's current
// price when no unit price was given.
func (item *ProposalItem) BeforeCreate(tx *gorm.DB) error {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if !item.UnitPrice.IsZero() {
		return nil
	}
	var product Product
	if err := tx.Session(&gorm.Session{NewDB: true}).Select("id", "price").First(&product, item.ProductID).Error; err != nil {
		return fmt.Errorf("snapshot price of product %d: %w", item.ProductID, err)
	}
	item.UnitPrice = product.Price
	return nil
}

// BeforeUpdate rejects any explicit change to the price snapshot. The column
// is create-only, so Save never writes it either.
func (item *ProposalItem) BeforeUpdate(tx *gorm.DB) error {
	switch dest := tx.Statement.Dest.(type) {
	case map[string]any:
		for _, key := range []string{"UnitPrice", "unit_price"} {
			if v, ok := dest[key]; ok && !samePrice(v, item.UnitPrice) {
				return ErrUnitPriceFrozen
			}
		}
	case *ProposalItem:
		if dest != item && !dest.UnitPrice.IsZero() && !dest.UnitPrice.Equal(item.UnitPrice) {
			return ErrUnitPriceFrozen
		}
	case ProposalItem:
		if !dest.UnitPrice.IsZero() && !dest.UnitPrice.Equal(item.UnitPrice) {
			return ErrUnitPriceFrozen
		}
	}
	return nil
}

func samePrice(v any, current decimal.Decimal) bool {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return false
		}
		d = *x
	case string:
		parsed, err := decimal.NewFromString(x)
		if err != nil {
			return false
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	default:
		return false
	}
	return d.Equal(current)
}
