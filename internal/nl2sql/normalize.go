package nl2sql

import (
	"regexp"
	"strings"
)

var fenceMarker = regexp.MustCompile("```(?i:sql)?")

// StripMarkdownSQL removes every markdown code fence marker from a model
// reply, wherever it occurs, and trims surrounding whitespace.
func StripMarkdownSQL(value string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(value, ""))
}
