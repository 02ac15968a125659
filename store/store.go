// Package store persists document chunks and answer runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// Chunk is one stored slice of a document.
type Chunk struct {
	ID         int64
	DocID      string
	ChunkIndex int
	Text       string
	LineStart  int
	LineEnd    int
}

// Run records one answered question for auditing.
type Run struct {
	ID        int64
	Question  string
	Answer    string
	ChunkIDs  []int64
	Reason    string
	CreatedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id      TEXT    NOT NULL,
	chunk_index INTEGER NOT NULL,
	text        TEXT    NOT NULL,
	line_start  INTEGER NOT NULL,
	line_end    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_doc_id ON documents(doc_id);

CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	chunk_ids  TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store wraps the SQLite database. It is safe for concurrent use; SQLite
// serializes writers internally.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and applies the
// schema. WAL mode keeps readers unblocked during ingest.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// ClearDoc removes all chunks of a document so it can be re-ingested.
func (s *Store) ClearDoc(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID)
	return err
}

// InsertChunks stores the chunks in one transaction and returns their
// assigned row IDs in input order.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (doc_id, chunk_index, text, line_start, line_end) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx, c.DocID, c.ChunkIndex, c.Text, c.LineStart, c.LineEnd)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s#%d: %w", c.DocID, c.ChunkIndex, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AllChunks returns every stored chunk ordered by document and position.
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, doc_id, chunk_index, text, line_start, line_end FROM documents ORDER BY doc_id, chunk_index")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunksByIDs returns the chunks for the given IDs, preserving the input
// order. Missing IDs are skipped.
func (s *Store) ChunksByIDs(ctx context.Context, ids []int64) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, doc_id, chunk_index, text, line_start, line_end FROM documents WHERE id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Chunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// DocIDs lists the distinct ingested documents with their chunk counts.
func (s *Store) DocIDs(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_id, COUNT(*) FROM documents GROUP BY doc_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// SaveRun appends an answer record.
func (s *Store) SaveRun(ctx context.Context, r Run) (int64, error) {
	idsJSON, err := json.Marshal(r.ChunkIDs)
	if err != nil {
		return 0, err
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (question, answer, chunk_ids, reason, created_at) VALUES (?, ?, ?, ?, ?)",
		r.Question, r.Answer, string(idsJSON), r.Reason, created.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentRuns returns the latest n runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, question, answer, chunk_ids, reason, created_at FROM runs ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var idsJSON, created string
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &idsJSON, &r.Reason, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(idsJSON), &r.ChunkIDs); err != nil {
			return nil, fmt.Errorf("run %d: bad chunk_ids: %w", r.ID, err)
		}
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			r.CreatedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.Text, &c.LineStart, &c.LineEnd); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
