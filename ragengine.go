// Package ragengine defines the shared evidence and answer types for the
// retrieval-augmented answer engine. Retrieval scores, gating metadata and
// final answers flow between the index, generate, serve and repl packages
// through these types.
package ragengine

// Hit is one retrieved evidence chunk, enriched with gating scores.
type Hit struct {
	// ChunkID is the row id of the chunk in the evidence store.
	ChunkID int64 `json:"chunk_id"`
	// DocID is the source document identifier (its base filename).
	DocID string `json:"doc_id"`
	// ChunkIndex is the position of the chunk within its document.
	ChunkIndex int `json:"chunk_index"`
	// Text is the chunk content.
	Text string `json:"text"`
	// LineStart and LineEnd are the estimated source line range.
	LineStart int `json:"line_start"`
	LineEnd   int `json:"line_end"`
	// BM25 is the raw BM25 score.
	BM25 float64 `json:"bm25"`
	// Coverage is the fraction of query tokens present in the chunk text.
	Coverage float64 `json:"coverage"`
	// TitleHit reports whether a query token appears in the document id.
	TitleHit bool `json:"title_hit"`
	// Final is the combined ranking score used for ordering.
	Final float64 `json:"final"`
}

// Reasons recorded with a persisted answer.
const (
	// ReasonOK means the model answered with a valid citation.
	ReasonOK = "ok"
	// ReasonFallbackExcerpt means the model output had no citation and the
	// answer was replaced by an excerpt from the best-matching chunk.
	ReasonFallbackExcerpt = "fallback_excerpt"
	// ReasonNoEvidence means retrieval returned nothing usable.
	ReasonNoEvidence = "no_evidence"
	// ReasonHardTermMissing means a required query term was absent from the
	// retrieved evidence.
	ReasonHardTermMissing = "hard_term_missing"
)

// InsufficientEvidence is the fixed reply when the engine refuses to answer.
const InsufficientEvidence = "证据不足"

// Answer is the outcome of one question.
type Answer struct {
	// Text is the final normalized answer.
	Text string `json:"text"`
	// ChunkIDs lists the evidence chunks that backed the answer.
	ChunkIDs []int64 `json:"chunk_ids,omitempty"`
	// Reason records how the answer was produced (see Reason constants).
	Reason string `json:"reason"`
}
