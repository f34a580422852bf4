package search

import (
	"strings"
	"unicode"
)

var casualPhrases = map[string]bool{
	"hello":             true,
	"hi":                true,
	"hey":               true,
	"how are you":       true,
	"who are you":       true,
	"what is your name": true,
	"thanks":            true,
	"ok":                true,
	"bye":               true,
	"good morning":      true,
	"good afternoon":    true,
	"good evening":      true,
	"what's up":         true,
	"wassup":            true,
	"lol":               true,
	"haha":              true,
	"test":              true,
	"testing":           true,
}

var legalKeywords = map[string]bool{
	"law": true, "legal": true, "court": true, "judge": true, "crime": true,
	"punishment": true, "section": true, "ipc": true, "article": true,
	"constitution": true, "act": true, "offense": true, "trial": true,
	"advocate": true, "bail": true, "case": true, "petition": true,
	"clause": true, "statute": true, "regulation": true, "contract": true,
	"offence": true, "accused": true, "guilty": true, "innocent": true,
	"criminal": true, "civil": true, "rights": true, "liability": true,
	"procedure": true, "evidence": true, "jurisdiction": true,
}

// IsOnTopic reports whether question should reach retrieval. Greetings and
// small talk matching a known phrase exactly, and inputs shorter than three
// characters, are rejected. No legal keyword is required.
func IsOnTopic(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if casualPhrases[q] {
		return false
	}
	return len([]rune(q)) >= 3
}

// HasLegalKeyword reports whether question mentions a common legal term.
func HasLegalKeyword(question string) bool {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if legalKeywords[w] {
			return true
		}
	}
	return false
}
