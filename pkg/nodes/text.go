// Package nodes holds the text helpers shared by the query node handlers.
package nodes

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher finds a fixed set of terms in text. ASCII terms match on word boundaries, other terms
// (e.g. CJK) match as substrings. Patterns are compiled once by NewMatcher.
type Matcher struct {
	terms []term
}

type term struct {
	text    string
	pattern *regexp.Regexp
}

func NewMatcher(terms ...string) *Matcher {
	m := &Matcher{terms: make([]term, 0, len(terms))}

	for _, t := range terms {
		t = strings.ToLower(t)

		compiled := term{text: t}
		if isASCII(t) {
			compiled.pattern = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
		}

		m.terms = append(m.terms, compiled)
	}

	return m
}

// Count returns how many distinct terms occur in text.
func (m *Matcher) Count(text string) int {
	lower := strings.ToLower(text)
	count := 0

	for _, t := range m.terms {
		if t.match(lower) {
			count++
		}
	}

	return count
}

// Any reports whether at least one term occurs in text.
func (m *Matcher) Any(text string) bool {
	lower := strings.ToLower(text)

	for _, t := range m.terms {
		if t.match(lower) {
			return true
		}
	}

	return false
}

func (t term) match(lower string) bool {
	if t.pattern == nil {
		return strings.Contains(lower, t.text)
	}

	return t.pattern.MatchString(lower)
}

// Token normalizes a classification answer before it is compared with the accepted literals.
func Token(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)

	return string(runes[:limit])
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}

	return true
}
