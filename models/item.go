package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// Item is one sellable variant: (product, size, color, pack). The inventory
// ledger tracks each item independently.
type Item struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Sku            string          `gorm:"size:255;not null;uniqueIndex" json:"sku"`
	Name           string          `gorm:"size:255;not null;index" json:"name"`
	ProductId      *int            `gorm:"index" json:"product_id"`
	Size           string          `gorm:"size:32" json:"size"`
	Color          string          `gorm:"size:64" json:"color"`
	PackType       string          `gorm:"size:32" json:"pack_type"`
	PairMultiplier int             `gorm:"default:1" json:"pair_multiplier"`
	Unit           string          `gorm:"size:32;default:'adet'" json:"unit"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (it *Item) Active() bool {
	return it.IsActive == nil || *it.IsActive
}

// VariantSku builds the deterministic SKU for a variant so repeated
// resolution of the same description always lands on the same item.
func VariantSku(product *Product, size, color, packType string) string {
	parts := []string{product.Slug}
	for _, attr := range []string{size, color, packType} {
		if attr != "" {
			parts = append(parts, utils.Slugify(attr))
		}
	}
	return strings.Join(parts, "-")
}

// FindOrCreateVariant locates the active variant for the SKU, or creates one.
// An inactive item holding the SKU counts as absent: retired variants are
// never resurrected, so the replacement gets a -v2/-v3 suffixed SKU.
func FindOrCreateVariant(tx *gorm.DB, product *Product, size, color, packType string, pairMultiplier int) (*Item, error) {
	if pairMultiplier < 1 {
		pairMultiplier = 1
	}
	baseSku := VariantSku(product, size, color, packType)

	sku := baseSku
	for gen := 2; ; gen++ {
		var existing Item
		err := tx.Where("sku = ?", sku).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			break
		}
		if err != nil {
			return nil, err
		}
		if existing.Active() {
			return &existing, nil
		}
		sku = fmt.Sprintf("%s-v%d", baseSku, gen)
	}

	nameParts := []string{product.Name}
	if size != "" {
		nameParts = append(nameParts, size)
	}
	if color != "" {
		nameParts = append(nameParts, color)
	}
	if packType != "" {
		nameParts = append(nameParts, strings.ToUpper(packType))
	}
	unit := product.DefaultUnit
	if unit == "" {
		unit = "adet"
	}
	item := Item{
		Sku:            sku,
		Name:           strings.Join(nameParts, " - "),
		ProductId:      &product.ID,
		Size:           size,
		Color:          color,
		PackType:       packType,
		PairMultiplier: pairMultiplier,
		Unit:           unit,
		PurchasePrice:  product.DefaultPrice,
	}
	if err := tx.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindOrCreateFallbackItem backs the "unmatched description" path: the order
// still gets a generic item keyed by the description's slug so the
// transaction is never lost.
func FindOrCreateFallbackItem(tx *gorm.DB, description string) (*Item, bool, error) {
	sku := utils.Slugify(description)
	var item Item
	err := tx.Where("sku = ?", sku).First(&item).Error
	if err == nil {
		if !item.Active() {
			return nil, false, fmt.Errorf("item %q is inactive", sku)
		}
		return &item, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}
	item = Item{Sku: sku, Name: strings.TrimSpace(description), PairMultiplier: 1}
	if err := tx.Create(&item).Error; err != nil {
		return nil, false, err
	}
	return &item, true, nil
}
