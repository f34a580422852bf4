package chunker

import (
	"regexp"
	"strings"
)

// headingPatterns mark the start of a numbered legal division. Order matters
// only for readability; the first match wins.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(Section|SECTION|S\.|Sec\.)\s*\d+(\.\d+)*`), // Section 4, Sec. 2.3
	regexp.MustCompile(`^\d+\.\d+(\.\d+)*`),                          // 2.3.4 subsections
	regexp.MustCompile(`^(Clause|CLAUSE)\s*\d+(\.\d+)*`),             // Clause 7.1
	regexp.MustCompile(`^(Article|ARTICLE)\s*\d+`),                   // Article 21
}

// IsHeading reports whether line starts a section, clause, article or
// dotted subsection.
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, re := range headingPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
