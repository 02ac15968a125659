// Package index provides lexical (BM25) and vector (HNSW) retrieval over
// document chunks.
package index

import "strings"

// Tokenize splits mixed Chinese/English text into BM25 terms: runs of ASCII
// letters, digits and underscores become one lowercased token each, and every
// CJK ideograph becomes its own token. All other runes act as separators.
func Tokenize(text string) []string {
	var tokens []string
	var run strings.Builder

	flush := func() {
		if run.Len() > 0 {
			tokens = append(tokens, strings.ToLower(run.String()))
			run.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			run.WriteRune(r)
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}
