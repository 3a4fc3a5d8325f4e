package corpus

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and returns maximal runs of word characters
// (letters, digits, underscore). This mirrors the `\w+` tokenization the
// logistic-regression and attention-MLP experiments were built on;
// punctuation is discarded.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var current strings.Builder
	for _, r := range text {
		if isWordRune(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
