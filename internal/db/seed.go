package db

import (
	"errors"
	"fmt"

	"github.com/inventariopro/inventariopro/internal/models"
	"gorm.io/gorm"
)

// DefaultCategories are created by Seed when missing.
var DefaultCategories = []string{
	"Mobiliário",
	"Equipamentos de áudio e vídeo",
	"Iluminação",
	"Decoração",
	"Alimentos e bebidas",
}

// Seed inserts reference data. It is idempotent.
func Seed(gdb *gorm.DB) error {
	for _, name := range DefaultCategories {
		var existing models.Category
		err := gdb.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup category %q: %w", name, err)
		}
		if err := gdb.Create(&models.Category{Name: name}).Error; err != nil {
			return fmt.Errorf("create category %q: %w", name, err)
		}
	}
	return nil
}
