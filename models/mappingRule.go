package models

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// inputValidator checks the same binding tags gin enforces at the HTTP edge,
// so rules created from CLI tools and tests go through identical validation.
var inputValidator = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

// ItemMappingRule is the only sanctioned translation from free feed text to
// inventory reality. Rules are evaluated priority desc, id asc; first match wins.
type ItemMappingRule struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	SourcePattern string               `gorm:"size:255;not null" json:"source_pattern" binding:"required"`
	MatchMode     MatchMode            `gorm:"size:16;not null;default:'exact'" json:"match_mode"`
	Priority      int                  `gorm:"not null;default:0;index" json:"priority"`
	IsActive      *bool                `gorm:"not null;default:true" json:"is_active"`
	Outputs       []*ItemMappingOutput `gorm:"foreignKey:RuleId" json:"outputs"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// ItemMappingOutput names either a direct item or a (product, size, color)
// variant to materialize, with a quantity multiplier and optional price.
type ItemMappingOutput struct {
	ID             int              `gorm:"primary_key" json:"id"`
	RuleId         int              `gorm:"not null;index" json:"rule_id"`
	ItemId         *int             `json:"item_id"`
	ProductId      *int             `json:"product_id"`
	Size           string           `gorm:"size:32" json:"size"`
	Color          string           `gorm:"size:64" json:"color"`
	PackType       string           `gorm:"size:32" json:"pack_type"`
	Quantity       int              `gorm:"default:1" json:"quantity"`
	PairMultiplier int              `gorm:"default:1" json:"pair_multiplier"`
	Price          *decimal.Decimal `gorm:"type:decimal(20,4)" json:"price"`
}

type NewItemMappingRule struct {
	SourcePattern string                  `json:"source_pattern" binding:"required"`
	MatchMode     MatchMode               `json:"match_mode" binding:"required,oneof=exact icontains regex"`
	Priority      int                     `json:"priority"`
	IsActive      *bool                   `json:"is_active"`
	Outputs       []*NewItemMappingOutput `json:"outputs" binding:"required,min=1,dive"`
}

type NewItemMappingOutput struct {
	ItemId         *int             `json:"item_id"`
	ProductId      *int             `json:"product_id"`
	Size           string           `json:"size"`
	Color          string           `json:"color"`
	PackType       string           `json:"pack_type"`
	Quantity       int              `json:"quantity"`
	PairMultiplier int              `json:"pair_multiplier"`
	Price          *decimal.Decimal `json:"price"`
}

func (input *NewItemMappingRule) validate() error {
	if err := inputValidator.Struct(input); err != nil {
		return err
	}
	for _, out := range input.Outputs {
		if out.ItemId == nil && out.ProductId == nil {
			return errors.New("each output needs an item_id or a product_id")
		}
	}
	return nil
}

func (input *NewItemMappingOutput) toModel(ruleId int) *ItemMappingOutput {
	qty := input.Quantity
	if qty < 1 {
		qty = 1
	}
	mult := input.PairMultiplier
	if mult < 1 {
		mult = 1
	}
	return &ItemMappingOutput{
		RuleId:         ruleId,
		ItemId:         input.ItemId,
		ProductId:      input.ProductId,
		Size:           input.Size,
		Color:          input.Color,
		PackType:       input.PackType,
		Quantity:       qty,
		PairMultiplier: mult,
		Price:          input.Price,
	}
}

func CreateItemMappingRule(ctx context.Context, input *NewItemMappingRule) (*ItemMappingRule, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	rule := ItemMappingRule{
		SourcePattern: input.SourcePattern,
		MatchMode:     input.MatchMode,
		Priority:      input.Priority,
		IsActive:      input.IsActive,
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rule).Error; err != nil {
			return err
		}
		for _, out := range input.Outputs {
			if err := tx.Create(out.toModel(rule.ID)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func UpdateItemMappingRule(ctx context.Context, id int, input *NewItemMappingRule) (*ItemMappingRule, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	rule, err := utils.FetchModel[ItemMappingRule](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(rule).Updates(map[string]interface{}{
			"SourcePattern": input.SourcePattern,
			"MatchMode":     input.MatchMode,
			"Priority":      input.Priority,
			"IsActive":      input.IsActive,
		}).Error; err != nil {
			return err
		}
		// outputs are replaced wholesale; they carry no history of their own
		if err := tx.Where("rule_id = ?", id).Delete(&ItemMappingOutput{}).Error; err != nil {
			return err
		}
		for _, out := range input.Outputs {
			if err := tx.Create(out.toModel(id)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func DeleteItemMappingRule(ctx context.Context, id int) (*ItemMappingRule, error) {
	rule, err := utils.FetchModel[ItemMappingRule](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&ItemMappingOutput{}).Error; err != nil {
			return err
		}
		return tx.Delete(rule).Error
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func ListItemMappingRules(ctx context.Context) ([]*ItemMappingRule, error) {
	return utils.FetchAllModels[ItemMappingRule](ctx, "Outputs")
}
