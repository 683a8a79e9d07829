package fusion

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// NormalizeText strips all whitespace and uppercases, so "kz 1" and "KZ1"
// compare equal.
func NormalizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// TextSimilarity returns 1 − (Levenshtein distance / max length) over
// normalized text. Two empty strings are fully similar; one empty string is
// fully dissimilar to any non-empty one.
func TextSimilarity(a, b string) float64 {
	a, b = NormalizeText(a), NormalizeText(b)
	if a == "" && b == "" {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max)
}
