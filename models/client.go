package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

type Client struct {
	ID        int          `gorm:"primary_key" json:"id"`
	Name      string       `gorm:"size:255;not null;index" json:"name"`
	Phone     string       `gorm:"size:32;index" json:"phone"`
	Email     string       `gorm:"size:255" json:"email"`
	Address   string       `gorm:"type:text" json:"address"`
	City      string       `gorm:"size:100;index" json:"city"`
	UniqueKey string       `gorm:"size:255;uniqueIndex" json:"unique_key"`
	Status    ClientStatus `gorm:"size:32;index" json:"status"`
	HeightCm  *int         `json:"height_cm"`
	WeightKg  *int         `json:"weight_kg"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveClient finds the client a feed row refers to, or creates one.
//
// Lookup order:
//  1. current-format key (normalized name + "|" + normalized phone)
//  2. legacy name-only key (records created before phone was mandatory)
//  3. phone absent only: key-prefix match, then exact case-insensitive name,
//     then global normalized-name equality -- each step is taken only when it
//     yields a single unambiguous candidate.
//
// A matched client is enriched non-destructively and its stored key upgraded
// to the current format. missingStatus is stamped on newly created clients so
// the operator can see which feed's counterpart is still pending.
func ResolveClient(tx *gorm.DB, rec *importer.Record, missingStatus ClientStatus) (client *Client, created bool, updated bool, err error) {
	newKey := utils.ClientUniqueKey(rec.Name, rec.Phone)
	legacyKey := utils.LegacyClientUniqueKey(rec.Name)

	if newKey != "" {
		client, err = findClientByKey(tx, newKey)
		if err != nil {
			return nil, false, false, err
		}
	}
	if client == nil && legacyKey != "" {
		client, err = findClientByKey(tx, legacyKey)
		if err != nil {
			return nil, false, false, err
		}
	}
	if client == nil && utils.NormalizePhone(rec.Phone) == "" && rec.Name != "" {
		client, err = findClientByNameFallback(tx, rec.Name)
		if err != nil {
			return nil, false, false, err
		}
	}

	if client == nil {
		client = &Client{
			Name:      strings.TrimSpace(rec.Name),
			Phone:     rec.Phone,
			Address:   rec.Address,
			City:      rec.City,
			UniqueKey: newKey,
			Status:    missingStatus,
		}
		if err := tx.Create(client).Error; err != nil {
			return nil, false, false, err
		}
		return client, true, false, nil
	}

	updated = enrichClient(client, rec, newKey)
	if updated {
		if err := tx.Save(client).Error; err != nil {
			return nil, false, false, err
		}
	}
	return client, false, updated, nil
}

func findClientByKey(tx *gorm.DB, key string) (*Client, error) {
	var c Client
	err := tx.Where("unique_key = ?", key).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// findClientByNameFallback is the constrained fuzzy path used only when the
// row carries no phone at all. Each step requires exactly one candidate;
// ambiguity means a new client, never a silent merge of two people.
func findClientByNameFallback(tx *gorm.DB, name string) (*Client, error) {
	prefix := utils.LegacyClientUniqueKey(name) + "|%"

	var candidates []*Client
	if err := tx.Where("unique_key LIKE ?", prefix).Limit(2).Find(&candidates).Error; err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	candidates = nil
	if err := tx.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).Limit(2).Find(&candidates).Error; err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	normalized := utils.NormalizeText(name)
	candidates = nil
	var all []*Client
	if err := tx.Find(&all).Error; err != nil {
		return nil, err
	}
	for _, c := range all {
		if utils.NormalizeText(c.Name) == normalized {
			candidates = append(candidates, c)
			if len(candidates) > 1 {
				return nil, nil
			}
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return nil, nil
}

// enrichClient fills empty fields from the record. A non-empty field is never
// overwritten with an empty value, and known height/weight survive. The
// stored key is upgraded only when the row actually carries a phone; a
// phone-less row matched via the name fallback must not flatten a richer key.
func enrichClient(client *Client, rec *importer.Record, newKey string) bool {
	updated := false
	if newKey != "" && client.UniqueKey != newKey && utils.NormalizePhone(rec.Phone) != "" {
		client.UniqueKey = newKey
		updated = true
	}
	if rec.Phone != "" && client.Phone == "" {
		client.Phone = rec.Phone
		updated = true
	}
	if rec.Address != "" && client.Address == "" {
		client.Address = rec.Address
		updated = true
	}
	if rec.City != "" && client.City == "" {
		client.City = rec.City
		updated = true
	}
	return updated
}

// BackfillClientMetrics stores height/weight parsed from an origin-feed item
// parenthetical, keeping any previously known values.
func BackfillClientMetrics(tx *gorm.DB, client *Client, heightCm, weightKg *int) error {
	changed := false
	if heightCm != nil && client.HeightCm == nil {
		client.HeightCm = heightCm
		changed = true
	}
	if weightKg != nil && client.WeightKg == nil {
		client.WeightKg = weightKg
		changed = true
	}
	if !changed {
		return nil
	}
	return tx.Model(client).Updates(map[string]interface{}{
		"HeightCm": client.HeightCm,
		"WeightKg": client.WeightKg,
	}).Error
}
