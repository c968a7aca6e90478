package submission

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`,|&|\band\b`)

// SplitQuery splits free text into item segments on commas, ampersands and
// the lowercase word "and". Segments keep their order and are trimmed,
// empty segments are kept.
func SplitQuery(text string) []string {
	parts := separators.Split(text, -1)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
