package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pck00223-oss/ai-rag-engine/index"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

// Ingestor runs the load/chunk/store pipeline. If vectors is nil the
// embedding step is skipped and retrieval stays lexical-only.
type Ingestor struct {
	store     *store.Store
	vectors   *index.VectorIndex
	chunkSize int
	overlap   int
}

// New creates an ingestor with the given chunking parameters.
func New(st *store.Store, vectors *index.VectorIndex, chunkSize, overlap int) *Ingestor {
	return &Ingestor{store: st, vectors: vectors, chunkSize: chunkSize, overlap: overlap}
}

// IngestFile replaces the stored chunks of one document with a fresh split of
// the file's current content. It returns the number of chunks stored. The
// document ID is the file's base name.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	if g.chunkSize <= 0 || g.overlap < 0 || g.overlap >= g.chunkSize {
		return 0, fmt.Errorf("invalid chunking parameters: size=%d overlap=%d", g.chunkSize, g.overlap)
	}
	docID := filepath.Base(path)

	text, err := LoadText(path)
	if err != nil {
		return 0, err
	}
	pieces := Chunk(NormalizeText(text), g.chunkSize, g.overlap)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("%s: empty document", path)
	}

	if err := g.store.ClearDoc(ctx, docID); err != nil {
		return 0, fmt.Errorf("clear %s: %w", docID, err)
	}

	chunks := make([]store.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		chunks[i] = store.Chunk{
			DocID:      docID,
			ChunkIndex: p.Index,
			Text:       p.Text,
			LineStart:  p.LineStart,
			LineEnd:    p.LineEnd,
		}
		texts[i] = p.Text
	}

	ids, err := g.store.InsertChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", docID, err)
	}

	if g.vectors != nil {
		if err := g.vectors.IndexChunks(ctx, ids, texts); err != nil {
			slog.Warn("vector indexing failed, retrieval stays lexical", "doc", docID, "error", err)
		}
	}

	slog.Info("ingested document", "doc", docID, "chunks", len(ids))
	return len(ids), nil
}

// IngestDir ingests every markdown and text file under dir. Per-file failures
// are logged and skipped; the walk itself failing is an error. Returns the
// total chunk count.
func (g *Ingestor) IngestDir(ctx context.Context, dir string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTextFile(path) {
			return nil
		}
		n, err := g.IngestFile(ctx, path)
		if err != nil {
			slog.Warn("skipping document", "path", path, "error", err)
			return nil
		}
		total += n
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, nil
}

func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}
