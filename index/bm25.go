package index

import "math"

// Okapi BM25 parameters.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// BM25 scores queries against a fixed corpus of tokenized documents using the
// Okapi weighting scheme. It is built once per retrieval request and is
// read-only afterwards.
type BM25 struct {
	docFreqs  []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

// NewBM25 builds the scorer over the tokenized corpus. An empty corpus yields
// a scorer whose Scores are all zero.
func NewBM25(corpus [][]string) *BM25 {
	b := &BM25{
		docFreqs: make([]map[string]int, len(corpus)),
		docLens:  make([]int, len(corpus)),
		idf:      make(map[string]float64),
	}

	total := 0
	nd := make(map[string]int)
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, tok := range doc {
			freqs[tok]++
		}
		b.docFreqs[i] = freqs
		b.docLens[i] = len(doc)
		total += len(doc)
		for tok := range freqs {
			nd[tok]++
		}
	}
	if len(corpus) > 0 {
		b.avgDocLen = float64(total) / float64(len(corpus))
	}

	// Standard Okapi IDF goes negative for terms in more than half the
	// corpus; those are floored to a fraction of the average IDF instead.
	var idfSum float64
	var negative []string
	n := float64(len(corpus))
	for tok, df := range nd {
		idf := math.Log((n - float64(df) + 0.5) / (float64(df) + 0.5))
		b.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(b.idf) > 0 {
		floor := bm25Epsilon * idfSum / float64(len(b.idf))
		for _, tok := range negative {
			b.idf[tok] = floor
		}
	}
	return b
}

// Scores returns one BM25 score per corpus document for the tokenized query.
func (b *BM25) Scores(query []string) []float64 {
	scores := make([]float64, len(b.docFreqs))
	for _, tok := range query {
		idf, ok := b.idf[tok]
		if !ok {
			continue
		}
		for i, freqs := range b.docFreqs {
			f := float64(freqs[tok])
			if f == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(b.docLens[i])/b.avgDocLen
			scores[i] += idf * f * (bm25K1 + 1) / (f + bm25K1*norm)
		}
	}
	return scores
}
