package generate

import (
	"strings"
	"testing"

	"github.com/pck00223-oss/ai-rag-engine/index"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

func gateChunks() []store.Chunk {
	return []store.Chunk{
		{ID: 1, DocID: "retrieval.md", ChunkIndex: 0, Text: "faiss 是向量检索库，支持高维向量搜索", LineStart: 1, LineEnd: 3},
		{ID: 2, DocID: "retrieval.md", ChunkIndex: 1, Text: "bm25 是基于词频的检索算法", LineStart: 2, LineEnd: 5},
		{ID: 3, DocID: "web.md", ChunkIndex: 0, Text: "flask 提供 http 路由和请求处理", LineStart: 1, LineEnd: 4},
	}
}

func TestRankChunksOrdersByFinal(t *testing.T) {
	hits := rankChunks(gateChunks(), index.Tokenize("faiss 向量检索"), 3)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != 1 {
		t.Errorf("expected chunk 1 first, got %d", hits[0].ChunkID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Final > hits[i-1].Final {
			t.Errorf("hits not sorted at %d: %v", i, hits)
		}
	}
	if hits[0].Coverage <= 0 {
		t.Errorf("expected positive coverage for best hit, got %f", hits[0].Coverage)
	}
}

func TestRankChunksTopKAndEmpty(t *testing.T) {
	hits := rankChunks(gateChunks(), index.Tokenize("检索"), 2)
	if len(hits) != 2 {
		t.Errorf("expected topK=2 hits, got %d", len(hits))
	}
	if got := rankChunks(nil, index.Tokenize("检索"), 5); got != nil {
		t.Errorf("expected nil for empty corpus, got %v", got)
	}
}

func TestTitleHit(t *testing.T) {
	hits := rankChunks(gateChunks(), index.Tokenize("retrieval 的原理"), 3)
	var sawTitle bool
	for _, h := range hits {
		if h.DocID == "retrieval.md" && h.TitleHit {
			sawTitle = true
		}
		if h.DocID == "web.md" && h.TitleHit {
			t.Error("web.md should not be a title hit")
		}
	}
	if !sawTitle {
		t.Error("expected title hit for retrieval.md")
	}
}

func TestTitleHitIgnoresSingleCharacters(t *testing.T) {
	// "w" and the single CJK char both occur in "web.md" context but are too
	// short to flip the title bonus.
	if titleHit([]string{"w", "法"}, "web法.md") {
		t.Error("single-character tokens must not count as title hits")
	}
	if !titleHit([]string{"web"}, "web.md") {
		t.Error("two-plus-character token should hit")
	}
}

func TestFilterHitsGates(t *testing.T) {
	hits := rankChunks(gateChunks(), index.Tokenize("faiss"), 3)
	kept := filterHits(hits, 0.6, 0.10)
	for _, h := range kept {
		if h.BM25 < 0.6 && h.Coverage < 0.10 && !h.TitleHit {
			t.Errorf("hit passed no gate: %+v", h)
		}
	}

	// Floors set above any possible score keep nothing without a title hit.
	none := filterHits(rankChunks(gateChunks(), index.Tokenize("毫无关系的词"), 3), 1e9, 1.1)
	if len(none) != 0 {
		t.Errorf("expected empty after strict filter, got %d", len(none))
	}
}

func TestCoverage(t *testing.T) {
	q := index.Tokenize("faiss bm25 索引")
	full := coverage(q, "faiss 与 bm25 的索引对比")
	if full != 1 {
		t.Errorf("expected full coverage, got %f", full)
	}
	partial := coverage(q, "faiss 而已")
	if partial != 0.5 {
		t.Errorf("expected 0.5 coverage, got %f", partial)
	}
	// Substring containment: a query token inside a longer word still counts.
	morph := coverage(index.Tokenize("std format usage"), "reformatting output with std::formatter")
	if morph < 0.66 || morph > 0.67 {
		t.Errorf("expected 2/3 coverage, got %f", morph)
	}
	// Single CJK characters never count toward coverage.
	if got := coverage(index.Tokenize("词法分析"), "词法分析的定义"); got != 0 {
		t.Errorf("CJK-only query coverage = %f", got)
	}
	if got := coverage(nil, "anything"); got != 0 {
		t.Errorf("empty query coverage = %f", got)
	}
}

func TestHardTerms(t *testing.T) {
	terms := []string{"bm25", "faiss", "std::format"}

	active := activeHardTerms("FAISS 和 bm25 有什么区别", terms)
	if len(active) != 2 {
		t.Fatalf("expected 2 active terms, got %v", active)
	}

	missing := missingHardTerms(active, "这段证据只提到 BM25 算法")
	if len(missing) != 1 || missing[0] != "faiss" {
		t.Errorf("expected [faiss] missing, got %v", missing)
	}
	if got := missingHardTerms(active, "证据包含 bm25 和 faiss"); got != nil {
		t.Errorf("expected nothing missing, got %v", got)
	}
}

func TestPickBestExcerptPrefersHardTermChunk(t *testing.T) {
	hits := rankChunks(gateChunks(), index.Tokenize("faiss 向量"), 3)
	hit, excerpt, ok := pickBestExcerpt(hits, []string{"faiss"})
	if !ok {
		t.Fatal("expected an excerpt")
	}
	if hit.ChunkID != 1 {
		t.Errorf("expected chunk 1 (contains faiss), got %d", hit.ChunkID)
	}
	if !strings.Contains(excerpt, "[retrieval.md#chunk0#L1-L3]") {
		t.Errorf("excerpt missing citation: %q", excerpt)
	}

	if _, _, ok := pickBestExcerpt(nil, nil); ok {
		t.Error("expected no excerpt for empty hits")
	}
}

func TestExcerptOfTruncatesLongText(t *testing.T) {
	long := strings.Repeat("长", 500)
	got := excerptOf(long)
	if n := len([]rune(got)); n > excerptMaxRunes+2 {
		t.Errorf("excerpt too long: %d runes", n)
	}
	if !strings.HasSuffix(got, "……") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-12:])
	}
	if short := excerptOf("短文本"); short != "短文本" {
		t.Errorf("short text changed: %q", short)
	}
}
