package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not_found")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrProductInUse      = errors.New("product_in_use")
)

func notFound(what string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}

// lookupErr maps gorm's record-not-found to ErrNotFound and wraps anything else.
func lookupErr(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what, id)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}

// mustExist returns ErrNotFound when no row of model has the given id.
func mustExist(tx *gorm.DB, model any, id uint, what string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check %s %d: %w", what, id, err)
	}
	if count == 0 {
		return notFound(what, id)
	}
	return nil
}
