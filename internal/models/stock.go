package models

import "time"

// GlobalStock is the warehouse quantity of a product, one row per product.
// Quantity may go negative when the ledger allows it.
type GlobalStock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint     `gorm:"uniqueIndex;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Quantity  int64    `gorm:"not null;default:0" json:"quantity"`
}

// RoomStock is the quantity of a product allocated to a room.
// (room_id, product_id) is unique.
type RoomStock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	RoomID    uint     `gorm:"not null;uniqueIndex:idx_room_stock_room_product" json:"room_id"`
	Room      *Room    `gorm:"foreignKey:RoomID" json:"-"`
	ProductID uint     `gorm:"not null;index;uniqueIndex:idx_room_stock_room_product" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Quantity  int64    `gorm:"not null;default:0" json:"quantity"`
}
