package cache

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a raw query into a cache key: lowercase, trimmed,
// punctuation removed, interior whitespace collapsed to single spaces.
// "What's the Fee?" and "whats the fee" normalize to the same key.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	space := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
