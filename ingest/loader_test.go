package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pooriaast/sleuth/tools/docindex"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guides/streams.md", "# Streams Guide\n\nStreams deliver data incrementally.")
	writeFile(t, dir, "notes.txt", "plain text notes without a heading")
	writeFile(t, dir, "ignored.pdf", "binary-ish payload")
	writeFile(t, dir, "empty.md", "   \n")

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	bySource := map[string]Document{}
	for _, d := range docs {
		bySource[d.Source] = d
	}
	md, ok := bySource[filepath.Join("guides", "streams.md")]
	if !ok {
		t.Fatalf("markdown document missing, got %v", bySource)
	}
	if md.Title != "Streams Guide" {
		t.Fatalf("title must come from the first heading, got %q", md.Title)
	}
	txt, ok := bySource["notes.txt"]
	if !ok {
		t.Fatal("text document missing")
	}
	if txt.Title != "notes" {
		t.Fatalf("title must fall back to the file name, got %q", txt.Title)
	}
}

func TestLoadDirHTML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.html", `<!DOCTYPE html>
<html><head><title>Rendered Page</title></head>
<body><article><h1>Rendered Page</h1>
<p>This paragraph is the readable body of the page and long enough for extraction to keep it around.</p>
<p>A second paragraph with more readable content so the extractor treats this as the main article.</p>
</article></body></html>`)

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Title == "" {
		t.Fatal("expected a title from the page")
	}
	if docs[0].Content == "" {
		t.Fatal("expected extracted text content")
	}
}

func TestBuildIndex(t *testing.T) {
	idx, err := docindex.OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer idx.Close()

	docs := []Document{
		{Source: "a.md", Title: "A", Content: "# A\ncontent about topic a"},
		{Source: "b.md", Title: "B", Content: "# B\ncontent about topic b"},
	}
	stats, err := BuildIndex(context.Background(), idx, docs, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if stats.Documents != 2 {
		t.Fatalf("expected 2 documents indexed, got %d", stats.Documents)
	}
	if stats.Children == 0 || stats.Parents == 0 {
		t.Fatalf("expected chunks, got %+v", stats)
	}

	n, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != uint64(stats.Children) {
		t.Fatalf("index must hold the child chunks: count=%d children=%d", n, stats.Children)
	}
}

func TestBuildIndexCancellation(t *testing.T) {
	idx, err := docindex.OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer idx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := BuildIndex(ctx, idx, []Document{{Source: "a.md", Content: "x"}}, nil); err == nil {
		t.Fatal("expected a context error")
	}
}
