package models

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// CandidateScorer rates how likely a feed row and a stored client describe
// the same person, 0..100. Kept behind an interface so the algorithm is
// swappable and testable apart from the matching control flow.
type CandidateScorer interface {
	ScoreCandidate(rec *importer.Record, client *Client) int
}

// LevenshteinScorer weights name, address and city similarity. Name dominates;
// address and city only break near-ties.
type LevenshteinScorer struct{}

func (LevenshteinScorer) ScoreCandidate(rec *importer.Record, client *Client) int {
	s1 := tokenSortRatio(rec.Name, client.Name)
	s2 := tokenSortRatio(rec.Address, client.Address)
	s3 := tokenSortRatio(rec.City, client.City)
	score := 0.5*float64(s1) + 0.35*float64(s2) + 0.15*float64(s3)
	return int(score + 0.5)
}

// tokenSortRatio compares two strings after normalizing, tokenizing and
// sorting, so word order and duplicates do not matter.
func tokenSortRatio(a, b string) int {
	na := sortedTokens(a)
	nb := sortedTokens(b)
	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}
	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	ratio := 100 - (100*dist)/longest
	if ratio < 0 {
		return 0
	}
	return ratio
}

func sortedTokens(s string) string {
	fields := strings.Fields(utils.NormalizeText(s))
	if len(fields) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(fields))
	uniq := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			uniq = append(uniq, f)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, " ")
}

type ScoredClient struct {
	Client *Client `json:"client"`
	Score  int     `json:"score"`
}

// FindClientCandidates ranks stored clients against a row for the operator
// reconcile queue. Read-only.
func FindClientCandidates(tx *gorm.DB, scorer CandidateScorer, rec *importer.Record, limit int) ([]ScoredClient, error) {
	if scorer == nil {
		scorer = LevenshteinScorer{}
	}
	var clients []*Client
	if err := tx.Find(&clients).Error; err != nil {
		return nil, err
	}
	scored := make([]ScoredClient, 0, len(clients))
	for _, c := range clients {
		scored = append(scored, ScoredClient{Client: c, Score: scorer.ScoreCandidate(rec, c)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
