package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService manages categories and products.
type CatalogService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{DB: db, Log: log}
}

func validateCategoryName(name string) error {
	v := validation.Violations{}
	validation.Required("name", name, v)
	validation.MaxLen("name", name, 100, v)
	return v.Err()
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}
	c := models.Category{Name: name}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := s.DB.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}
	var c models.Category
	db := s.DB.WithContext(ctx)
	if err := db.First(&c, id).Error; err != nil {
		return nil, lookupErr(err, "category", id)
	}
	if err := db.Model(&c).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	c.Name = name
	return &c, nil
}

// DeleteCategory removes a category; its products become uncategorized.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Category{}, id, "category"); err != nil {
			return err
		}
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return fmt.Errorf("detach products: %w", err)
		}
		return tx.Delete(&models.Category{}, id).Error
	})
}

// ProductInput creates or updates a product. When Quantity is set, the
// product's global stock is overwritten with it in the same transaction.
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	Currency    string
	CategoryID  *uint
	Description string
	Quantity    *int64
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = models.DefaultCurrency
	}
	if in.CategoryID != nil && *in.CategoryID == 0 {
		in.CategoryID = nil
	}
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.NonNegativeDecimal("price", in.Price, v)
	if len(in.Currency) != 3 {
		v["currency"] = "invalid"
	}
	if in.Quantity != nil {
		validation.NonNegativeInt("quantity", *in.Quantity, v)
	}
	return v.Err()
}

// ProductStock is a product with its current global quantity.
type ProductStock struct {
	models.Product
	Stock int64 `json:"stock"`
}

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Query      string
	CategoryID uint
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*ProductStock, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	out := ProductStock{Product: models.Product{
		Name:        in.Name,
		Price:       in.Price.Round(2),
		Currency:    in.Currency,
		CategoryID:  in.CategoryID,
		Description: in.Description,
	}}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.CategoryID != nil {
			if err := mustExist(tx, &models.Category{}, *in.CategoryID, "category"); err != nil {
				return err
			}
		}
		if err := tx.Create(&out.Product).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if in.Quantity != nil {
			gs, err := upsertGlobal(tx, out.ID, *in.Quantity)
			if err != nil {
				return err
			}
			out.Stock = gs.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("product created", zap.Uint("product_id", out.ID), zap.String("name", out.Name))
	return &out, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) ([]ProductStock, error) {
	db := s.DB.WithContext(ctx)
	q := db.Preload("Category").Order("name")
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		q = q.Where("lower(name) LIKE ?", "%"+term+"%")
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	stock, err := globalQuantities(db, products)
	if err != nil {
		return nil, err
	}
	out := make([]ProductStock, 0, len(products))
	for _, p := range products {
		out = append(out, ProductStock{Product: p, Stock: stock[p.ID]})
	}
	return out, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*ProductStock, error) {
	db := s.DB.WithContext(ctx)
	var p models.Product
	if err := db.Preload("Category").First(&p, id).Error; err != nil {
		return nil, lookupErr(err, "product", id)
	}
	stock, err := globalQuantities(db, []models.Product{p})
	if err != nil {
		return nil, err
	}
	return &ProductStock{Product: p, Stock: stock[p.ID]}, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*ProductStock, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Product{}, id, "product"); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if err := mustExist(tx, &models.Category{}, *in.CategoryID, "category"); err != nil {
				return err
			}
		}
		err := tx.Model(&models.Product{ID: id}).
			Select("Name", "Price", "Currency", "CategoryID", "Description").
			Updates(models.Product{
				Name:        in.Name,
				Price:       in.Price.Round(2),
				Currency:    in.Currency,
				CategoryID:  in.CategoryID,
				Description: in.Description,
			}).Error
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		if in.Quantity != nil {
			if _, err := upsertGlobal(tx, id, *in.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product and its stock rows. Products referenced
// by a proposal line item cannot be deleted.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Product{}, id, "product"); err != nil {
			return err
		}
		var refs int64
		if err := tx.Model(&models.ProposalItem{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: product %d is on %d proposal items", ErrProductInUse, id, refs)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.RoomStock{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.GlobalStock{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("product deleted", zap.Uint("product_id", id))
	return nil
}

func globalQuantities(db *gorm.DB, products []models.Product) (map[uint]int64, error) {
	out := make(map[uint]int64, len(products))
	if len(products) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	var rows []models.GlobalStock
	if err := db.Where("product_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load global stock: %w", err)
	}
	for _, r := range rows {
		out[r.ProductID] = r.Quantity
	}
	return out, nil
}
