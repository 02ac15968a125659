package index

import (
	"os"

	"github.com/coder/hnsw"
	json "github.com/goccy/go-json"
)

type cacheFile struct {
	Model      string       `json:"model"`
	Dimensions int          `json:"dimensions"`
	Entries    []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	ChunkID   int64     `json:"chunk_id"`
	Embedding []float32 `json:"embedding"`
}

// SaveCache writes all indexed vectors to disk so a restart can skip
// re-embedding unchanged chunks.
func (v *VectorIndex) SaveCache(path string, chunkIDs []int64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entries := make([]cacheEntry, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		vec, ok := v.graph.Lookup(id)
		if !ok {
			continue
		}
		entries = append(entries, cacheEntry{ChunkID: id, Embedding: vec})
	}

	model := ""
	if v.embedder != nil {
		model = v.embedder.Model()
	}
	data, err := json.Marshal(cacheFile{
		Model:      model,
		Dimensions: v.dims,
		Entries:    entries,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCache loads previously saved vectors. A cache written by a different
// model or with different dimensions is silently skipped; the chunks will be
// re-embedded on the next IndexChunks pass.
func (v *VectorIndex) LoadCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return err
	}
	if v.embedder != nil && cf.Model != v.embedder.Model() {
		return nil
	}
	if cf.Dimensions != v.dims {
		return nil
	}

	nodes := make([]hnsw.Node[int64], 0, len(cf.Entries))
	for _, e := range cf.Entries {
		nodes = append(nodes, hnsw.MakeNode(e.ChunkID, e.Embedding))
	}
	if len(nodes) > 0 {
		v.mu.Lock()
		v.graph.Add(nodes...)
		v.mu.Unlock()
	}
	return nil
}
