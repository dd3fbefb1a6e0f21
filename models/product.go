package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null;index" json:"name" binding:"required"`
	Slug         string          `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	DefaultUnit  string          `gorm:"size:32;default:'adet'" json:"default_unit"`
	DefaultPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"default_price"`
	DefaultColor string          `gorm:"size:64" json:"default_color"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string           `json:"name" binding:"required"`
	DefaultUnit  string           `json:"default_unit"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
	DefaultColor string           `json:"default_color"`
}

// CreateProduct seeds a catalog entry ahead of the feeds so mapping rules
// have something concrete to point at.
func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	slug := utils.Slugify(input.Name)
	if err := utils.ValidateUnique[Product](ctx, "slug", slug, 0); err != nil {
		return nil, err
	}
	unit := input.DefaultUnit
	if unit == "" {
		unit = "adet"
	}
	product := Product{
		Name:         input.Name,
		Slug:         slug,
		DefaultUnit:  unit,
		DefaultPrice: utils.DereferencePtr(input.DefaultPrice),
		DefaultColor: input.DefaultColor,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func ListProducts(ctx context.Context) ([]*Product, error) {
	return utils.FetchAllModels[Product](ctx)
}

// FindOrCreateProductBySlug resolves a product by its slug, creating it on
// first sighting. Mapper outputs that name a product without an item land here.
func FindOrCreateProductBySlug(tx *gorm.DB, name string) (*Product, error) {
	slug := utils.Slugify(name)
	var p Product
	err := tx.Where("slug = ?", slug).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	p = Product{Name: name, Slug: slug}
	if err := tx.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
