package conform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normKey canonicalizes a title or artist name for join matching: trim,
// lowercase, and strip diacritics so "Beyoncé" and "beyonce" collide.
func normKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// Decompose, remove nonspacing marks (accents), recompose.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// joinKey builds the catalog lookup key from a song title and artist name.
// The separator cannot occur in normalized text.
func joinKey(title, artist string) string {
	return normKey(title) + "\x1f" + normKey(artist)
}
