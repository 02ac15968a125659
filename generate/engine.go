// Package generate orchestrates retrieval, evidence gating, model inference
// and answer post-processing.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
	defaults "github.com/pck00223-oss/ai-rag-engine/default"
	"github.com/pck00223-oss/ai-rag-engine/index"
	"github.com/pck00223-oss/ai-rag-engine/postprocess"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

const answerCacheTTL = 10 * time.Minute

// answerStops halts generation on chat-turn residue and control tokens. The
// sentence punctuation stops from the config are reserved for Direct mode,
// where a cited multi-clause answer is not expected.
var answerStops = []string{
	"\nHuman:", "\nUser:", "\nassistant:", "\nAssistant:",
	"<|endoftext|>", "</s>", "<|im_end|>", "<|eot_id|>",
	"\n【问题】", "\n\n",
}

// Completer opens one streaming completion per call.
type Completer interface {
	Stream(ctx context.Context, system, user string) (postprocess.Sampler, error)
	Close()
}

// Engine answers questions against the ingested evidence. It is safe for
// concurrent use.
type Engine struct {
	cfg          *ragengine.Config
	store        *store.Store
	completer    Completer
	customPrompt string
	cache        *ttlcache.Cache[string, ragengine.Answer]
}

// NewEngine creates an engine over the given store and completion backend.
func NewEngine(cfg *ragengine.Config, st *store.Store, completer Completer) *Engine {
	cache := ttlcache.New[string, ragengine.Answer](
		ttlcache.WithTTL[string, ragengine.Answer](answerCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, ragengine.Answer](),
	)
	go cache.Start()

	return &Engine{
		cfg:          cfg,
		store:        st,
		completer:    completer,
		customPrompt: loadCustomPrompt(),
		cache:        cache,
	}
}

// loadCustomPrompt loads a custom prompt template.
// Returns empty string if no custom prompt exists.
func loadCustomPrompt() string {
	promptPath := ragengine.PromptPath()
	data, err := os.ReadFile(promptPath)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", promptPath)
	return string(data)
}

// Close releases resources held by the engine.
func (e *Engine) Close() {
	e.cache.Stop()
	if e.completer != nil {
		e.completer.Close()
	}
}

// Search ranks all stored chunks against the question and returns the topK
// hits before gating.
func (e *Engine) Search(ctx context.Context, question string) ([]ragengine.Hit, error) {
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	return rankChunks(chunks, index.Tokenize(question), e.cfg.Retrieval.TopK), nil
}

// Answer answers the question with evidence gating and citation checking.
func (e *Engine) Answer(ctx context.Context, question string) (ragengine.Answer, error) {
	a, _, err := e.AnswerVerbose(ctx, question)
	return a, err
}

// AnswerVerbose is Answer plus the pre-gate retrieval hits for display.
func (e *Engine) AnswerVerbose(ctx context.Context, question string) (ragengine.Answer, []ragengine.Hit, error) {
	if item := e.cache.Get(question); item != nil {
		return item.Value(), nil, nil
	}

	hits, err := e.Search(ctx, question)
	if err != nil {
		return ragengine.Answer{}, nil, err
	}

	// Hard terms from the question must all occur somewhere in the retrieved
	// evidence, checked before filtering. A question about faiss with no
	// faiss in the corpus gets no answer at all, excerpts included.
	active := activeHardTerms(question, e.cfg.Retrieval.HardTerms)
	if missing := missingHardTerms(active, evidenceBlob(hits)); len(missing) > 0 {
		slog.Debug("hard terms missing from evidence", "missing", missing)
		return e.finish(ctx, question, hits, ragengine.Answer{
			Text:   ragengine.InsufficientEvidence,
			Reason: ragengine.ReasonHardTermMissing,
		})
	}

	kept := filterHits(hits, e.cfg.Retrieval.MinBM25, e.cfg.Retrieval.MinCoverage)
	if len(kept) == 0 {
		return e.finish(ctx, question, hits, ragengine.Answer{
			Text:   ragengine.InsufficientEvidence,
			Reason: ragengine.ReasonNoEvidence,
		})
	}

	evidence := BuildEvidence(hitChunks(kept))

	text, err := e.generate(ctx, "", buildPrompt(e.customPrompt, evidence, question), answerStops, nil, "")
	if err != nil {
		return ragengine.Answer{}, hits, err
	}

	if text == "" || text == ragengine.InsufficientEvidence {
		return e.finish(ctx, question, hits, ragengine.Answer{
			Text:   ragengine.InsufficientEvidence,
			Reason: ragengine.ReasonNoEvidence,
		})
	}

	if !HasCitation(text) {
		slog.Debug("answer without citation, falling back to excerpt", "answer", text)
		hit, excerpt, ok := pickBestExcerpt(kept, active)
		if !ok {
			return e.finish(ctx, question, hits, ragengine.Answer{
				Text:   ragengine.InsufficientEvidence,
				Reason: ragengine.ReasonNoEvidence,
			})
		}
		return e.finish(ctx, question, hits, ragengine.Answer{
			Text:     excerpt,
			ChunkIDs: []int64{hit.ChunkID},
			Reason:   ragengine.ReasonFallbackExcerpt,
		})
	}

	ids := make([]int64, len(kept))
	for i, h := range kept {
		ids[i] = h.ChunkID
	}
	return e.finish(ctx, question, hits, ragengine.Answer{
		Text:     text,
		ChunkIDs: ids,
		Reason:   ragengine.ReasonOK,
	})
}

// Direct answers without retrieval: the one-sentence system prompt plus the
// full stop list, sentence terminators and anchor repair from the config.
func (e *Engine) Direct(ctx context.Context, question string) (string, error) {
	return e.generate(ctx, defaults.OneSentencePrompt, question,
		e.cfg.LLM.Stop, e.cfg.LLM.SentenceTerminators, e.cfg.LLM.AnchorPhrase)
}

func (e *Engine) generate(ctx context.Context, system, user string, stops, terminators []string, anchor string) (string, error) {
	if e.completer == nil {
		return "", fmt.Errorf("generation backend not configured; set RAG_LLM_BASE_URL or llm.base_url")
	}

	proc, err := postprocess.New(postprocess.Config{
		StopLiterals:        stops,
		SentenceTerminators: terminators,
		MaxTokens:           e.cfg.LLM.MaxTokens,
		AnchorPhrase:        anchor,
	})
	if err != nil {
		return "", err
	}

	sampler, err := e.completer.Stream(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}

	text, err := proc.Run(ctx, sampler)
	if err != nil {
		return "", err
	}
	slog.Debug("generation finished", "state", proc.State().String(), "raw_len", len(proc.Buffered()))
	return text, nil
}

// finish persists the run, caches the answer and returns it with the hits.
func (e *Engine) finish(ctx context.Context, question string, hits []ragengine.Hit, a ragengine.Answer) (ragengine.Answer, []ragengine.Hit, error) {
	if _, err := e.store.SaveRun(ctx, store.Run{
		Question: question,
		Answer:   a.Text,
		ChunkIDs: a.ChunkIDs,
		Reason:   a.Reason,
	}); err != nil {
		slog.Warn("failed to persist run", "error", err)
	}
	e.cache.Set(question, a, ttlcache.DefaultTTL)
	return a, hits, nil
}

func hitChunks(hits []ragengine.Hit) []store.Chunk {
	chunks := make([]store.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = store.Chunk{
			ID:         h.ChunkID,
			DocID:      h.DocID,
			ChunkIndex: h.ChunkIndex,
			Text:       h.Text,
			LineStart:  h.LineStart,
			LineEnd:    h.LineEnd,
		}
	}
	return chunks
}
