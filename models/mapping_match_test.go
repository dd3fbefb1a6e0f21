package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bitbucket.org/atolyemoda/satis_backend/models"
)

func rule(pattern string, mode models.MatchMode) *models.ItemMappingRule {
	return &models.ItemMappingRule{SourcePattern: pattern, MatchMode: mode}
}

func TestRuleMatchesExact(t *testing.T) {
	r := rule("Deri Ceket", models.MatchModeExact)
	assert.True(t, models.RuleMatches(r, "DERİ CEKET"), "normalized-equal")
	assert.True(t, models.RuleMatches(r, "deri   ceket"))
	assert.False(t, models.RuleMatches(r, "DERİ CEKET SİYAH"))
}

func TestRuleMatchesIContains(t *testing.T) {
	r := rule("ceket", models.MatchModeIContains)
	assert.True(t, models.RuleMatches(r, "2 ADET CEKET GONDERIMI"))
	assert.False(t, models.RuleMatches(r, "ELBISE"))

	empty := rule("", models.MatchModeIContains)
	assert.False(t, models.RuleMatches(empty, "herhangi"), "empty pattern never matches")
}

func TestRuleMatchesRegex(t *testing.T) {
	r := rule(`ceket(\s|$)`, models.MatchModeRegex)
	assert.True(t, models.RuleMatches(r, "DERI CEKET"))
	assert.True(t, models.RuleMatches(r, "ceket siyah"))

	bad := rule(`ceket(`, models.MatchModeRegex)
	assert.False(t, models.RuleMatches(bad, "ceket"), "invalid pattern never matches")
}
