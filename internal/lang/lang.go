// Package lang defines the conversation languages the assistant speaks.
package lang

import (
	"fmt"
	"strings"
	"unicode"
)

// Tag identifies a conversation language.
type Tag string

const (
	English Tag = "en"
	French  Tag = "fr"
)

// Parse normalizes a language tag. Only "en" and "fr" are accepted;
// region suffixes such as "fr-CA" are folded to their base language.
func Parse(s string) (Tag, error) {
	base := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	switch Tag(base) {
	case English, French:
		return Tag(base), nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// frenchWords are short function words that rarely appear as standalone
// English words.
var frenchWords = map[string]bool{
	"je": true, "tu": true, "suis": true, "pas": true,
	"avec": true, "où": true, "quoi": true,
}

// Detect guesses the language of text, defaulting to English.
func Detect(text string) Tag {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if frenchWords[w] {
			return French
		}
	}
	return English
}
