package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

const maxCleanPasses = 4

// CleanText strips all markup from user-supplied text and trims surrounding whitespace.
// Entities are unescaped so "Q&A" stays readable; the text is re-sanitized until it
// stops changing so encoded tags cannot turn into live markup.
func CleanText(s string) string {
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	// Still unstable; keep the escaped form.
	return strings.TrimSpace(strict.Sanitize(s))
}
