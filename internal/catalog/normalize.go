package catalog

import (
	"strings"
	"unicode/utf8"
)

// UnknownArtist is the grouping key for concerts with a blank artist.
const UnknownArtist = "unknown artist"

// artistSeparators mark where a billing string stops naming the artist and
// starts naming the tour, venue or subtitle. The plain ASCII hyphen only
// counts when spaced so names like "Jay-Z" survive.
var artistSeparators = []string{
	" - ",
	"－", // full-width hyphen-minus
	"—", // em dash
	"–", // en dash
	"|",
	"｜",
	"/",
	"／",
	"(",
	"（",
	"[",
	"【",
	"「",
	"《",
	":",
	"：",
}

// NormalizeArtist derives the canonical grouping key from a raw artist or
// title string. It is pure: identical input always yields the same key.
func NormalizeArtist(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return UnknownArtist
	}

	// A separator at index 0 is part of the name, so the search starts after
	// the first rune.
	_, first := utf8.DecodeRuneInString(text)
	rest := text[first:]
	cut := -1
	for _, sep := range artistSeparators {
		if idx := strings.Index(rest, sep); idx >= 0 && (cut < 0 || idx+first < cut) {
			cut = idx + first
		}
	}
	if cut < 0 {
		return text
	}
	if head := strings.TrimSpace(text[:cut]); head != "" {
		return head
	}
	return text
}
