package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Title renders a snake_case or kebab-case identifier for display, e.g.
// "segment_pending" becomes "Segment Pending".
func Title(value string) string {
	value = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(value))
	return titleCaser.String(value)
}
