package utils

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ttacon/libphonenumber"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	nonDigitRe    = regexp.MustCompile(`\D`)
	trailingParen = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	parenContent  = regexp.MustCompile(`\(([^()]*)\)`)
	parenAny      = regexp.MustCompile(`\([^()]*\)`)
	twoThreeDigit = regexp.MustCompile(`\d{2,3}`)

	foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
)

// NormalizeText lowercases, strips diacritics (NFKD, combining marks removed)
// and collapses whitespace. Feed headers and client names are compared in this form.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}

// DigitsOnly strips everything but digits.
func DigitsOnly(p string) string {
	return nonDigitRe.ReplaceAllString(p, "")
}

// NormalizePhone canonicalizes a phone number for identity matching.
// TR numbers arrive as "0555...", "555..." or "+90555..."; parsing with the TR
// region collapses all three to the national significant number. Unparseable
// input falls back to its digits.
func NormalizePhone(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	num, err := libphonenumber.Parse(p, "TR")
	if err == nil && libphonenumber.IsValidNumber(num) {
		return libphonenumber.GetNationalSignificantNumber(num)
	}
	return DigitsOnly(p)
}

// ClientUniqueKey derives the identity key for a client: normalized name,
// a pipe, and the normalized phone. Empty when both parts are empty.
func ClientUniqueKey(name string, phone string) string {
	n := NormalizeText(name)
	ph := NormalizePhone(phone)
	if n == "" && ph == "" {
		return ""
	}
	return n + "|" + ph
}

// LegacyClientUniqueKey is the name-only key used before phone became mandatory.
// Kept for lookups against records created under the old format.
func LegacyClientUniqueKey(name string) string {
	return NormalizeText(name)
}

// StripParentheticalSuffix removes trailing "(...)" groups from an item
// description. The suffix usually encodes buyer height/weight, not the item.
func StripParentheticalSuffix(s string) string {
	for trailingParen.MatchString(s) {
		s = trailingParen.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// ParseItemDetails extracts the base item name plus buyer height (cm), weight (kg)
// and free-text notes from the parenthetical groups of an origin-feed description.
//
//	"DERİ CEKET (180,75) (hediye paketi)" -> ("DERİ CEKET", 180, 75, ["hediye paketi"])
//
// When the first group does not contain two 2-3 digit numbers, every group is a note.
func ParseItemDetails(text string) (base string, heightCm *int, weightKg *int, notes []string) {
	if strings.TrimSpace(text) == "" {
		return "", nil, nil, nil
	}
	var parts []string
	for _, m := range parenContent.FindAllStringSubmatch(text, -1) {
		parts = append(parts, m[1])
	}
	base = strings.TrimSpace(parenAny.ReplaceAllString(text, ""))
	if base == "" {
		base = strings.TrimSpace(text)
	}
	if len(parts) == 0 {
		return base, nil, nil, nil
	}

	nums := twoThreeDigit.FindAllString(parts[0], -1)
	if len(nums) >= 2 {
		h := atoiOrZero(nums[0])
		w := atoiOrZero(nums[1])
		heightCm = &h
		weightKg = &w
		for _, p := range parts[1:] {
			if n := strings.TrimSpace(p); n != "" {
				notes = append(notes, n)
			}
		}
	} else {
		for _, p := range parts {
			if n := strings.TrimSpace(p); n != "" {
				notes = append(notes, n)
			}
		}
	}
	return base, heightCm, weightKg, notes
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
