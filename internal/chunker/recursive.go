package chunker

import (
	"strings"
	"unicode/utf8"
)

// separators are tried in order; "" splits into single characters.
var separators = []string{"\n\n", "\n", " ", ""}

// recursiveSplitter breaks text into pieces no longer than size runes,
// preferring paragraph, then line, then word boundaries.
type recursiveSplitter struct {
	size    int
	overlap int
}

func (r recursiveSplitter) split(text string) []string {
	var out []string
	for _, p := range r.splitWith(text, separators) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r recursiveSplitter) splitWith(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, s := range seps {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	for _, p := range strings.Split(text, sep) {
		if p != "" {
			pieces = append(pieces, p)
		}
	}

	var out, small []string
	for _, p := range pieces {
		if runeLen(p) < r.size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, r.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, r.splitWith(p, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, r.merge(small, sep)...)
	}
	return out
}

// merge greedily joins pieces up to size runes. When a chunk is emitted,
// trailing pieces totalling at most overlap runes are carried into the next.
func (r recursiveSplitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var docs, current []string
	total := 0

	for _, p := range pieces {
		n := runeLen(p)
		if total+n+joinCost(len(current), sepLen) > r.size && len(current) > 0 {
			if doc := joinTrim(current, sep); doc != "" {
				docs = append(docs, doc)
			}
			for total > r.overlap || (total > 0 && total+n+joinCost(len(current), sepLen) > r.size) {
				total -= runeLen(current[0]) + joinCost(len(current)-1, sepLen)
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n + joinCost(len(current)-1, sepLen)
	}
	if doc := joinTrim(current, sep); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// joinCost is the separator length paid when appending to a chunk that
// already holds n pieces.
func joinCost(n, sepLen int) int {
	if n > 0 {
		return sepLen
	}
	return 0
}

func joinTrim(pieces []string, sep string) string {
	return strings.TrimSpace(strings.Join(pieces, sep))
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
