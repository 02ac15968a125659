package ingest

import (
	"strings"
	"testing"
)

func TestChunkShortTextSinglePiece(t *testing.T) {
	pieces := Chunk("short text", 900, 150)
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
	p := pieces[0]
	if p.Index != 0 || p.Text != "short text" {
		t.Errorf("unexpected piece: %+v", p)
	}
	if p.LineStart != 1 || p.LineEnd != 1 {
		t.Errorf("expected lines 1-1, got %d-%d", p.LineStart, p.LineEnd)
	}
}

func TestChunkEmptyText(t *testing.T) {
	if pieces := Chunk("", 900, 150); pieces != nil {
		t.Errorf("expected nil for empty text, got %v", pieces)
	}
}

func TestChunkRejectsBadParameters(t *testing.T) {
	// overlap >= size would make the window step zero or negative.
	for _, tt := range []struct{ size, overlap int }{
		{0, 0}, {-1, 0}, {10, 10}, {10, 15}, {10, -1},
	} {
		if pieces := Chunk("some text", tt.size, tt.overlap); pieces != nil {
			t.Errorf("Chunk(size=%d, overlap=%d) = %v, want nil", tt.size, tt.overlap, pieces)
		}
	}
}

func TestChunkOverlapAndCoverage(t *testing.T) {
	text := strings.Repeat("a", 25)
	pieces := Chunk(text, 10, 4)

	if len(pieces) < 3 {
		t.Fatalf("expected at least 3 pieces, got %d", len(pieces))
	}
	// Step is size-overlap = 6; windows: [0,10) [6,16) [12,22) [18,25).
	if pieces[0].Text != strings.Repeat("a", 10) {
		t.Errorf("piece 0 = %q", pieces[0].Text)
	}
	if got := pieces[len(pieces)-1].Text; !strings.HasSuffix(text, got) {
		t.Errorf("last piece %q is not a suffix of input", got)
	}
	for i, p := range pieces {
		if p.Index != i {
			t.Errorf("piece %d has index %d", i, p.Index)
		}
	}
}

func TestChunkCountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("汉", 12)
	pieces := Chunk(text, 10, 2)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if got := len([]rune(pieces[0].Text)); got != 10 {
		t.Errorf("piece 0 has %d runes, want 10", got)
	}
}

func TestChunkLineSpans(t *testing.T) {
	// 5 lines of 4 runes each (3 chars + newline).
	text := "aaa\nbbb\nccc\nddd\neee"
	pieces := Chunk(text, 8, 0)

	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	if pieces[0].LineStart != 1 || pieces[0].LineEnd != 3 {
		t.Errorf("piece 0 lines %d-%d, want 1-3", pieces[0].LineStart, pieces[0].LineEnd)
	}
	if pieces[1].LineStart != 3 || pieces[1].LineEnd != 5 {
		t.Errorf("piece 1 lines %d-%d, want 3-5", pieces[1].LineStart, pieces[1].LineEnd)
	}
	if pieces[2].LineStart != 5 || pieces[2].LineEnd != 5 {
		t.Errorf("piece 2 lines %d-%d, want 5-5", pieces[2].LineStart, pieces[2].LineEnd)
	}
}

func TestNormalizeText(t *testing.T) {
	in := "line one  \r\nline two\t\rline three"
	want := "line one\nline two\nline three"
	if got := NormalizeText(in); got != want {
		t.Errorf("NormalizeText = %q, want %q", got, want)
	}
}
