package ingest

import "strings"

// Piece is one chunk of a document before storage. Line numbers are 1-based
// and inclusive.
type Piece struct {
	Index     int
	Text      string
	LineStart int
	LineEnd   int
}

// Chunk splits text into rune-based windows of at most size runes, each
// overlapping the previous by overlap runes. Line spans are derived from
// newline counts so answers can cite [doc#chunk#Lx-Ly]. Parameters outside
// 0 <= overlap < size yield no pieces.
func Chunk(text string, size, overlap int) []Piece {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var pieces []Piece
	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := min(start+size, len(runes))
		body := string(runes[start:end])

		lineStart := 1 + strings.Count(string(runes[:start]), "\n")
		lineEnd := lineStart + strings.Count(body, "\n")

		pieces = append(pieces, Piece{
			Index:     idx,
			Text:      body,
			LineStart: lineStart,
			LineEnd:   lineEnd,
		})
		if end == len(runes) {
			break
		}
	}
	return pieces
}
