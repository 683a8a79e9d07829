package texttrack

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// Pattern sets for semantic classification, matched in priority order against
// each recognized string. First match wins; no match falls through to
// description/unknown. The abbreviations follow GB structural drawing
// notation (KZ frame column, KL frame beam, LB slab, Q shear wall, ...).
var (
	componentIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(KZ|GZ|GBZ|YBZ|KZZ|XZ|LZ|DZ)\d+[A-Za-z]?$`),
		regexp.MustCompile(`^(KL|LL|WKL|XL|TL|JZL|QL|L)\d+(\(\d+[AB]?\))?[A-Za-z]?$`),
		regexp.MustCompile(`^(LB|WB|YXB|B)\d+[A-Za-z]?$`),
		regexp.MustCompile(`^(DWQ|JQ|Q)\d{1,2}[A-Za-z]?$`),
		regexp.MustCompile(`^(JC|DJ|CT|ZJ|TB)\d+[A-Za-z]?$`),
	}

	dimensionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d+\s*[xX×]\s*\d+(\s*[xX×]\s*\d+)?$`),
		regexp.MustCompile(`^[φΦ⌀]\d+(@\d+)?$`),
		regexp.MustCompile(`^\d+@\d+$`),
		regexp.MustCompile(`^\d+(\.\d+)?(mm|cm|m)$`),
		regexp.MustCompile(`^\d{3,5}$`),
	}

	materialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^C\d{2,3}$`),
		regexp.MustCompile(`^(HPB|HRB|RRB)\d{3}[EF]?$`),
		regexp.MustCompile(`^Q\d{3}[A-D]?$`),
	}

	axisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[①②③④⑤⑥⑦⑧⑨⑩⑪⑫⑬⑭⑮⑯⑰⑱⑲⑳]$`),
		regexp.MustCompile(`^[A-Z]{1,2}$`),
		regexp.MustCompile(`^\d{1,2}$`),
		regexp.MustCompile(`^[A-Z]-[A-Z]$`),
		regexp.MustCompile(`^\d{1,2}-\d{1,2}$`),
	}
)

// Classify assigns the semantic category of one recognized string.
func Classify(text string) types.TextCategory {
	s := strings.TrimSpace(text)
	if s == "" {
		return types.CategoryUnknown
	}

	for _, re := range componentIDPatterns {
		if re.MatchString(s) {
			return types.CategoryComponentID
		}
	}
	for _, re := range dimensionPatterns {
		if re.MatchString(s) {
			return types.CategoryDimension
		}
	}
	for _, re := range materialPatterns {
		if re.MatchString(s) {
			return types.CategoryMaterial
		}
	}
	for _, re := range axisPatterns {
		if re.MatchString(s) {
			return types.CategoryAxis
		}
	}

	// Long free text is a note or title block line, not noise.
	if len(strings.Fields(s)) >= 4 || utf8.RuneCountInString(s) >= 16 {
		return types.CategoryDescription
	}
	return types.CategoryUnknown
}
