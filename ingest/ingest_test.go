package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/pck00223-oss/ai-rag-engine/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadTextStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.md")
	if err := os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("正文")...), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "正文" {
		t.Errorf("got %q", got)
	}
}

func TestLoadTextGBKFallback(t *testing.T) {
	gbk, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte("向量检索"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "legacy.txt")
	if err := os.WriteFile(path, gbk, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadText(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "向量检索" {
		t.Errorf("got %q", got)
	}
}

func TestIngestFileStoresChunks(t *testing.T) {
	s := testStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("第一行\n第二行\n第三行\n"), 0644); err != nil {
		t.Fatal(err)
	}

	g := New(s, nil, 5, 1)
	n, err := g.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}

	docs, err := s.DocIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if docs["notes.md"] != n {
		t.Errorf("stored %d chunks for notes.md, want %d", docs["notes.md"], n)
	}
}

func TestIngestFileRejectsBadChunking(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("内容"), 0644); err != nil {
		t.Fatal(err)
	}

	g := New(s, nil, 100, 100)
	if _, err := g.IngestFile(context.Background(), path); err == nil {
		t.Fatal("overlap == size should be rejected")
	}
}

func TestIngestFileReplacesPrevious(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "doc.md")
	g := New(s, nil, 900, 150)
	ctx := context.Background()

	if err := os.WriteFile(path, []byte("旧内容很长的一段"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := g.IngestFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("新内容"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := g.IngestFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	chunks, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Text != "新内容" {
		t.Errorf("unexpected chunks after re-ingest: %+v", chunks)
	}
}

func TestIngestDirSkipsNonTextAndBadFiles(t *testing.T) {
	s := testStore(t)
	dir := t.TempDir()
	files := map[string]string{
		"a.md":     "文档A的内容",
		"b.txt":    "文档B的内容",
		"c.pdf":    "binary-ish",
		"empty.md": "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	g := New(s, nil, 900, 150)
	total, err := g.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("expected 2 chunks total, got %d", total)
	}

	docs, err := s.DocIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := docs["c.pdf"]; ok {
		t.Error("pdf should be skipped")
	}
	if _, ok := docs["empty.md"]; ok {
		t.Error("empty doc should be skipped")
	}
}
