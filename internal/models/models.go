package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to products created without a currency.
const DefaultCurrency = "BRL"

// Category groups products. Deleting a category leaves its products uncategorized.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:100;not null" json:"name"`
}

// Product is a sellable or rentable item with a current price.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string          `gorm:"size:255;not null" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	Currency    string          `gorm:"size:3;not null;default:'BRL'" json:"currency"`
	Description string          `gorm:"type:text" json:"description,omitempty"`

	CategoryID *uint     `gorm:"index" json:"category_id,omitempty"`
	Category   *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
}

// Event is a happening that owns rooms and proposals.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string     `gorm:"size:255;not null" json:"name"`
	Location    string     `gorm:"size:255" json:"location,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`

	Rooms []Room `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"rooms,omitempty"`
}

// Room is a named space within an event. EventID is fixed at creation.
type Room struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"size:100;not null" json:"name"`
	EventID uint   `gorm:"index;not null" json:"event_id"`
	Event   *Event `gorm:"foreignKey:EventID" json:"-"`

	Stock []RoomStock `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"stock,omitempty"`
}
