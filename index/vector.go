package index

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

const embedBatchSize = 32

// Neighbor is one vector search result.
type Neighbor struct {
	ChunkID  int64   `json:"chunk_id"`
	Distance float64 `json:"distance"`
}

// VectorIndex holds chunk embeddings in an HNSW graph keyed by chunk ID.
// All methods are safe for concurrent use.
type VectorIndex struct {
	embedder *Embedder
	dims     int

	mu    sync.RWMutex
	graph *hnsw.Graph[int64]
}

// NewVectorIndex creates an empty index. If embedder is nil the index is
// inert: IndexChunks and SearchText return nothing.
func NewVectorIndex(embedder *Embedder, dims int) *VectorIndex {
	return &VectorIndex{
		embedder: embedder,
		dims:     dims,
		graph:    hnsw.NewGraph[int64](),
	}
}

// Dimensions returns the expected embedding width.
func (v *VectorIndex) Dimensions() int { return v.dims }

// Len returns the number of indexed chunks.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.graph.Len()
}

// Add inserts or replaces one chunk vector.
func (v *VectorIndex) Add(chunkID int64, vec []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.graph.Add(hnsw.MakeNode(chunkID, vec))
}

// Lookup returns the stored vector for a chunk, if present.
func (v *VectorIndex) Lookup(chunkID int64) ([]float32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.graph.Lookup(chunkID)
}

// IndexChunks embeds the given texts in batches and inserts them keyed by the
// parallel chunk IDs. Chunks already present are skipped. A failed batch is
// logged and skipped; the rest proceed.
func (v *VectorIndex) IndexChunks(ctx context.Context, ids []int64, texts []string) error {
	if v.embedder == nil || len(ids) == 0 {
		return nil
	}

	v.mu.RLock()
	var todoIDs []int64
	var todoTexts []string
	for i, id := range ids {
		if _, exists := v.graph.Lookup(id); !exists {
			todoIDs = append(todoIDs, id)
			todoTexts = append(todoTexts, texts[i])
		}
	}
	v.mu.RUnlock()

	if len(todoIDs) == 0 {
		return nil
	}

	var nodes []hnsw.Node[int64]
	for i := 0; i < len(todoIDs); i += embedBatchSize {
		end := min(i+embedBatchSize, len(todoIDs))
		vectors, err := v.embedder.EmbedBatch(ctx, todoTexts[i:end])
		if err != nil {
			slog.Error("batch embed failed", "from", i, "to", end, "error", err)
			continue
		}
		for j, vec := range vectors {
			nodes = append(nodes, hnsw.MakeNode(todoIDs[i+j], vec))
		}
	}

	if len(nodes) > 0 {
		v.mu.Lock()
		v.graph.Add(nodes...)
		v.mu.Unlock()
	}
	return nil
}

// Search returns the topK nearest chunks to the query vector with their L2
// distances, nearest first.
func (v *VectorIndex) Search(vec []float32, topK int) []Neighbor {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 || topK <= 0 {
		return nil
	}
	nodes := v.graph.Search(vec, topK)
	out := make([]Neighbor, len(nodes))
	for i, n := range nodes {
		out[i] = Neighbor{ChunkID: n.Key, Distance: l2Distance(vec, n.Value)}
	}
	return out
}

// SearchText embeds the query and searches the graph.
func (v *VectorIndex) SearchText(ctx context.Context, query string, topK int) ([]Neighbor, error) {
	if v.embedder == nil {
		return nil, nil
	}
	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return v.Search(vec, topK), nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
