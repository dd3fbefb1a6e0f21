package utils

import (
	"regexp"
	"strings"
)

var nonAlnumRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify folds a name to a stable ascii slug. Variant SKUs are built from
// slugs, so the result must be deterministic for the same input.
func Slugify(value string) string {
	value = NormalizeText(value)
	// drop any non-ascii leftovers after diacritic folding
	var b strings.Builder
	for _, r := range value {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	value = nonAlnumRe.ReplaceAllString(b.String(), "-")
	value = strings.Trim(value, "-")
	if value == "" {
		return "item"
	}
	return value
}
