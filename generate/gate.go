package generate

import (
	"sort"
	"strings"
	"unicode/utf8"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
	"github.com/pck00223-oss/ai-rag-engine/index"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

// Final score weights and filter floors for evidence gating.
const (
	weightBM25     = 0.75
	weightCoverage = 0.25
	weightTitle    = 0.08

	excerptMaxRunes = 200
)

// rankChunks scores every chunk against the query and returns the topK as
// hits ordered by final score, highest first. BM25 is min-maxed against the
// best score of this query before weighting.
func rankChunks(chunks []store.Chunk, queryTokens []string, topK int) []ragengine.Hit {
	if len(chunks) == 0 || topK <= 0 {
		return nil
	}

	corpus := make([][]string, len(chunks))
	for i, c := range chunks {
		corpus[i] = index.Tokenize(c.Text)
	}
	scores := index.NewBM25(corpus).Scores(queryTokens)

	maxBM25 := 0.0
	for _, s := range scores {
		if s > maxBM25 {
			maxBM25 = s
		}
	}

	hits := make([]ragengine.Hit, len(chunks))
	for i, c := range chunks {
		norm := 0.0
		if maxBM25 > 0 {
			norm = scores[i] / maxBM25
		}
		cov := coverage(queryTokens, c.Text)
		title := titleHit(queryTokens, c.DocID)

		final := weightBM25*norm + weightCoverage*cov
		if title {
			final += weightTitle
		}

		hits[i] = ragengine.Hit{
			ChunkID:    c.ID,
			DocID:      c.DocID,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			LineStart:  c.LineStart,
			LineEnd:    c.LineEnd,
			BM25:       scores[i],
			Coverage:   cov,
			TitleHit:   title,
			Final:      final,
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Final > hits[j].Final })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// filterHits keeps hits that clear any of the three gates: BM25 floor,
// coverage floor, or a title hit.
func filterHits(hits []ragengine.Hit, minBM25, minCoverage float64) []ragengine.Hit {
	var kept []ragengine.Hit
	for _, h := range hits {
		if h.BM25 >= minBM25 || h.Coverage >= minCoverage || h.TitleHit {
			kept = append(kept, h)
		}
	}
	return kept
}

// coverage is the fraction of distinct query tokens contained in the chunk
// text. Containment is a substring test over the lowered text so that
// morphological variants still count ("format" covers "formatting"). Single
// CJK characters are too noisy to count and are skipped.
func coverage(queryTokens []string, text string) float64 {
	lowered := strings.ToLower(text)
	distinct := make(map[string]bool, len(queryTokens))
	matched, total := 0, 0
	for _, t := range queryTokens {
		if distinct[t] || isSingleCJK(t) {
			continue
		}
		distinct[t] = true
		total++
		if strings.Contains(lowered, t) {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func isSingleCJK(tok string) bool {
	runes := []rune(tok)
	return len(runes) == 1 && runes[0] >= 0x4E00 && runes[0] <= 0x9FFF
}

// titleHit reports whether any query token of at least two characters occurs
// in the document id. Single characters flip the title bonus far too easily.
func titleHit(queryTokens []string, docID string) bool {
	title := strings.ToLower(docID)
	for _, t := range queryTokens {
		if utf8.RuneCountInString(t) < 2 {
			continue
		}
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

// activeHardTerms returns the configured hard terms that occur in the
// question. Only those are required to show up in the evidence.
func activeHardTerms(question string, hardTerms []string) []string {
	q := strings.ToLower(question)
	var active []string
	for _, term := range hardTerms {
		if term != "" && strings.Contains(q, strings.ToLower(term)) {
			active = append(active, term)
		}
	}
	return active
}

// evidenceBlob joins every hit's document id and text into the single lowered
// haystack the hard-term check runs against.
func evidenceBlob(hits []ragengine.Hit) string {
	var b strings.Builder
	for _, h := range hits {
		b.WriteString(h.DocID)
		b.WriteByte('\n')
		b.WriteString(h.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// missingHardTerms returns the active terms absent from the evidence blob.
func missingHardTerms(active []string, evidence string) []string {
	blob := strings.ToLower(evidence)
	var missing []string
	for _, term := range active {
		if !strings.Contains(blob, strings.ToLower(term)) {
			missing = append(missing, term)
		}
	}
	return missing
}

// pickBestExcerpt selects the hit that best satisfies the hard terms and
// returns a cited excerpt of its text. Used when the model's answer cannot be
// trusted or evidence gating failed the generation path.
func pickBestExcerpt(hits []ragengine.Hit, active []string) (ragengine.Hit, string, bool) {
	if len(hits) == 0 {
		return ragengine.Hit{}, "", false
	}

	best := -1
	bestScore := 0.0
	for i, h := range hits {
		blob := strings.ToLower(h.Text)
		hardOK := 1.0
		for _, term := range active {
			if !strings.Contains(blob, strings.ToLower(term)) {
				hardOK = 0
				break
			}
		}
		score := 10*hardOK + 3*h.Coverage + 0.05*h.BM25
		if h.TitleHit {
			score += 2
		}
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}

	h := hits[best]
	excerpt := excerptOf(h.Text)
	tag := CitationTag(store.Chunk{
		DocID: h.DocID, ChunkIndex: h.ChunkIndex,
		LineStart: h.LineStart, LineEnd: h.LineEnd,
	})
	return h, excerpt + " " + tag, true
}

func excerptOf(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= excerptMaxRunes {
		return text
	}
	return string(runes[:excerptMaxRunes]) + "……"
}
