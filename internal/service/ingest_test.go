package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/loader"
	"ragqa/internal/retriever"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore/memory"
)

type brokenEmbedder struct{}

func (brokenEmbedder) Name() string   { return "broken" }
func (brokenEmbedder) Dimension() int { return 0 }
func (brokenEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, domain.ErrBackendUnavailable
}

func windowChunker(t *testing.T, size, overlap int) *chunker.WindowChunker {
	t.Helper()
	c, err := chunker.NewWindowChunker(size, overlap)
	if err != nil {
		t.Fatalf("NewWindowChunker: %v", err)
	}
	return c
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"france.txt": "Paris is the capital of France. The Louvre is a museum in Paris.",
		"fruit.md":   "Bananas are yellow. Apples can be red or green.",
		"notes.csv":  "a,b,c",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestIngest_ThenRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := writeCorpus(t)
	emb := hashing.NewEmbedder(256)
	store := memory.NewStorage("docs", 0)
	in := NewIngestor(loader.New(nil, nil), windowChunker(t, 40, 10), emb, store,
		summarizer.NewFrequencySummarizer(), 2, nil)

	report, err := in.Ingest(ctx, []string{dir}, IngestOptions{SummarySentences: 2})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(report.Files) != 2 || len(report.Skipped) != 1 {
		t.Fatalf("files = %+v skipped = %v", report.Files, report.Skipped)
	}
	total := 0
	for _, f := range report.Files {
		total += f.Chunks
	}
	if report.Stored != total || report.Info.Count != total || total < 3 {
		t.Fatalf("stored %d, chunks %d, info %+v", report.Stored, total, report.Info)
	}
	if report.Summary == "" {
		t.Fatalf("expected a summary")
	}

	res, err := retriever.New(emb, store, 1, 0, nil).Retrieve(ctx, "capital of France", 0)
	if err != nil || len(res) != 1 {
		t.Fatalf("Retrieve = %v, %v", res, err)
	}
	if !strings.Contains(res[0].Chunk.Text, "capital") {
		t.Fatalf("top chunk = %q", res[0].Chunk.Text)
	}

	// Re-ingesting with Clear replaces rather than duplicates.
	report, err = in.Ingest(ctx, []string{dir}, IngestOptions{Clear: true})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if report.Info.Count != total || report.Summary != "" {
		t.Fatalf("after clear count = %d, summary = %q", report.Info.Count, report.Summary)
	}
}

func TestIngest_EmbedFailure(t *testing.T) {
	dir := writeCorpus(t)
	in := NewIngestor(loader.New(nil, nil), windowChunker(t, 100, 10), brokenEmbedder{},
		memory.NewStorage("docs", 0), nil, 0, nil)
	_, err := in.Ingest(context.Background(), []string{dir}, IngestOptions{})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("error = %v, want ErrBackendUnavailable", err)
	}
}

func TestIngest_MissingPath(t *testing.T) {
	in := NewIngestor(loader.New(nil, nil), windowChunker(t, 100, 10), hashing.NewEmbedder(8),
		memory.NewStorage("docs", 0), nil, 0, nil)
	if _, err := in.Ingest(context.Background(), []string{"/does/not/exist"}, IngestOptions{}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestIngest_ReingestDropsStaleChunks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	if err := os.WriteFile(path, []byte(long), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := memory.NewStorage("docs", 0)
	in := NewIngestor(loader.New(nil, nil), windowChunker(t, 60, 10), hashing.NewEmbedder(64), store, nil, 0, nil)

	first, err := in.Ingest(ctx, []string{path}, IngestOptions{})
	if err != nil || first.Info.Count < 3 {
		t.Fatalf("first Ingest = %+v, %v", first.Info, err)
	}

	if err := os.WriteFile(path, []byte("A short note."), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second, err := in.Ingest(ctx, []string{path}, IngestOptions{})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if second.Info.Count != 1 {
		t.Fatalf("count after edit = %d, want 1", second.Info.Count)
	}
}
