package snippet

import (
	"regexp"
	"strings"
)

// Transcript sources escape inline timestamps as `\[12:34\] `.
var (
	timestampMarker = regexp.MustCompile(`\\\[\d{1,2}:\d{1,2}\\\]\s`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// Normalize strips timestamp markers, collapses whitespace runs to a single
// space, and trims the result. It is total over any input and idempotent.
func Normalize(raw string) string {
	s := timestampMarker.ReplaceAllString(raw, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
