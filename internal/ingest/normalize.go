package ingest

import (
	"regexp"
	"strings"
)

var (
	pageFooter = regexp.MustCompile(`(?i)page \d+ of \d+`)
	blankLines = regexp.MustCompile(`\n\s*\n`)
	hspace     = regexp.MustCompile(`[ \t]+`)
)

// Normalize removes "Page N of M" markers, collapses runs of blank lines into
// a single newline and runs of spaces or tabs into a single space.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = pageFooter.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n")
	text = hspace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
