package models

import (
	"regexp"
	"strings"

	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// RuleMatches is the pure match predicate for one rule against an already
// suffix-stripped description.
//
//	exact:     normalized-equal or slug-equal
//	icontains: case-insensitive substring
//	regex:     case-insensitive search; an invalid pattern never matches
func RuleMatches(rule *ItemMappingRule, text string) bool {
	pat := rule.SourcePattern
	switch rule.MatchMode {
	case MatchModeExact:
		return utils.NormalizeText(text) == utils.NormalizeText(pat) ||
			utils.Slugify(text) == utils.Slugify(pat)
	case MatchModeIContains:
		return pat != "" && strings.Contains(strings.ToLower(text), strings.ToLower(pat))
	case MatchModeRegex:
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

// ResolveMapping resolves a free-text item description to mapping outputs.
// The trailing parenthetical (buyer height/weight, not part of the item) is
// stripped before matching. Active rules are walked priority desc, id asc;
// first match wins and its outputs are returned as-is. No match yields empty
// outputs -- the orchestrator decides the fallback.
func ResolveMapping(tx *gorm.DB, text string) ([]*ItemMappingOutput, *ItemMappingRule, error) {
	raw := strings.TrimSpace(utils.StripParentheticalSuffix(text))
	if raw == "" {
		return nil, nil, nil
	}

	var rules []*ItemMappingRule
	if err := tx.Where("is_active = ?", true).
		Order("priority DESC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, nil, err
	}
	for _, rule := range rules {
		if !RuleMatches(rule, raw) {
			continue
		}
		var outs []*ItemMappingOutput
		if err := tx.Where("rule_id = ?", rule.ID).Order("id ASC").Find(&outs).Error; err != nil {
			return nil, nil, err
		}
		return outs, rule, nil
	}
	return nil, nil, nil
}

// ResolvedLine is one (item, quantity) pair produced by materializing a
// mapping output against the catalog.
type ResolvedLine struct {
	Item     *Item
	Quantity int
}

// MaterializeOutputs turns mapping outputs into concrete items, creating
// products and variants on demand. An output naming an inactive item is
// treated as not found and surfaces as an error so the row can be skipped
// without resurrecting the variant. baseName seeds product creation when the
// output names neither a product nor an item.
func MaterializeOutputs(tx *gorm.DB, outputs []*ItemMappingOutput, baseName string) ([]ResolvedLine, error) {
	lines := make([]ResolvedLine, 0, len(outputs))
	for _, out := range outputs {
		var item *Item
		if out.ItemId != nil {
			var it Item
			err := tx.First(&it, *out.ItemId).Error
			if err == gorm.ErrRecordNotFound || (err == nil && !it.Active()) {
				return nil, utils.ErrorRecordNotFound
			}
			if err != nil {
				return nil, err
			}
			item = &it
		} else {
			var product *Product
			if out.ProductId != nil {
				var p Product
				if err := tx.First(&p, *out.ProductId).Error; err != nil {
					if err == gorm.ErrRecordNotFound {
						return nil, utils.ErrorRecordNotFound
					}
					return nil, err
				}
				product = &p
			} else {
				var err error
				product, err = FindOrCreateProductBySlug(tx, baseName)
				if err != nil {
					return nil, err
				}
			}
			var err error
			item, err = FindOrCreateVariant(tx, product, out.Size, out.Color, out.PackType, out.PairMultiplier)
			if err != nil {
				return nil, err
			}
		}
		qty := out.Quantity
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, ResolvedLine{Item: item, Quantity: qty})
	}
	return lines, nil
}
