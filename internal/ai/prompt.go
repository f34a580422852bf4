package ai

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxContextChars caps the context sent to a summarizer.
	MaxContextChars = 3000
	// MinContextChars is the shortest context worth summarizing.
	MinContextChars = 50
)

// ErrInsufficientContext is returned when the retrieved context is too short
// to answer from.
var ErrInsufficientContext = errors.New("insufficient context")

// ErrEmptySummary is returned when a backend produced no usable text.
var ErrEmptySummary = errors.New("empty summary")

// ErrSummaryReportsError is returned when the model answered with an error
// message instead of a summary.
var ErrSummaryReportsError = errors.New("summary reports an error")

const legalPrompt = `You are a legal document analyzer. Answer ONLY based on the legal text provided.

User Question: "{question}"

Legal Text:
{context}

CRITICAL RULES:
1. Use ONLY information from the legal text above
2. Provide clear, structured answers with numbered points when applicable
3. Include relevant sections and articles
4. If information is not in the text, say: "This information is not available in the provided documents."
5. Be concise but comprehensive
6. Do NOT infer or use general knowledge
7. Do NOT mention political names unless explicitly in text

Provide a clear, well-structured answer:`

// BuildPrompt renders the legal-analysis prompt for question over
// contextText, truncated to MaxContextChars.
func BuildPrompt(contextText, question string) (string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(contextText)) < MinContextChars {
		return "", ErrInsufficientContext
	}
	r := strings.NewReplacer("{question}", question, "{context}", truncate(contextText, MaxContextChars))
	return r.Replace(legalPrompt), nil
}

// cleanSummary trims model output and rejects empty answers and answers
// that mention "Error".
func cleanSummary(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptySummary
	}
	if strings.Contains(s, "Error") {
		return "", fmt.Errorf("%w: %s", ErrSummaryReportsError, truncate(s, 200))
	}
	return s, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
