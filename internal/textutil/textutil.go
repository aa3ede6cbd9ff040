package textutil

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoJSONObject is returned when a reply carries no balanced JSON object.
var ErrNoJSONObject = errors.New("no json object in reply")

// CollapseSpaces replaces every run of whitespace with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLToText flattens an HTML fragment to its text content with collapsed
// whitespace. Plain text passes through unchanged apart from spacing.
func HTMLToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return CollapseSpaces(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CollapseSpaces(fragment)
	}
	return CollapseSpaces(doc.Text())
}

// ExtractJSONObject returns the first balanced top-level {...} block in s.
// Prose or markdown fences around the object are dropped; braces inside
// string literals are ignored.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
