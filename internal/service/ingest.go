package service

import (
	"context"
	"fmt"
	"log/slog"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/loader"
	"ragqa/internal/logging"
	"ragqa/internal/vectorstore"
)

// Summarizer produces an extractive summary of a set of documents.
type Summarizer interface {
	Summarize(docs []string, maxSentences int) string
}

// IngestOptions controls one ingestion run.
type IngestOptions struct {
	// Clear empties the collection before adding.
	Clear bool
	// SummarySentences > 0 requests a corpus summary of that many sentences.
	SummarySentences int
}

// FileReport is the per-file outcome of an ingestion run.
type FileReport struct {
	Path   string
	Chunks int
}

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	Files   []FileReport
	Skipped []loader.Skip
	Stored  int
	Summary string
	Info    domain.CollectionInfo
}

// Ingestor runs load, chunk, embed and store.
type Ingestor struct {
	loader     *loader.Loader
	chunker    domain.Chunker
	embedder   embedding.Embedder
	store      vectorstore.Storage
	summarizer Summarizer
	batchSize  int
	log        *slog.Logger
}

// NewIngestor wires an ingestor. summarizer may be nil.
func NewIngestor(l *loader.Loader, c domain.Chunker, e embedding.Embedder, s vectorstore.Storage, sum Summarizer, batchSize int, logger *slog.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Ingestor{loader: l, chunker: c, embedder: e, store: s, summarizer: sum, batchSize: batchSize, log: logging.OrDiscard(logger)}
}

// Ingest loads paths and stores their chunks. Chunks left from an earlier
// ingestion of the same path are removed first. Unloadable files are skipped
// and reported; embedding or store failures abort the run.
func (in *Ingestor) Ingest(ctx context.Context, paths []string, opts IngestOptions) (IngestReport, error) {
	var report IngestReport
	docs, skipped, err := in.loader.LoadPaths(paths)
	if err != nil {
		return report, fmt.Errorf("load documents: %w", err)
	}
	report.Skipped = skipped

	if opts.Clear {
		if err := in.store.Clear(ctx); err != nil {
			return report, fmt.Errorf("%w: clear collection: %w", domain.ErrBackendUnavailable, err)
		}
		in.log.Info("collection cleared")
	}

	contents := make([]string, 0, len(docs))
	for _, doc := range docs {
		chunks, err := in.chunker.Chunk(doc)
		if err != nil {
			return report, fmt.Errorf("chunk %s: %w", doc.Path, err)
		}
		if !opts.Clear {
			removed, err := in.store.DeleteSource(ctx, doc.Path)
			if err != nil {
				return report, fmt.Errorf("%w: drop previous chunks of %s: %w", domain.ErrBackendUnavailable, doc.Path, err)
			}
			if removed > 0 {
				in.log.Debug("replaced previous version", "path", doc.Path, "removed", removed)
			}
		}
		n, err := in.embedAndStore(ctx, chunks)
		if err != nil {
			return report, fmt.Errorf("ingest %s: %w", doc.Path, err)
		}
		report.Files = append(report.Files, FileReport{Path: doc.Path, Chunks: len(chunks)})
		report.Stored += n
		contents = append(contents, doc.Content)
		in.log.Info("ingested document", "path", doc.Path, "chunks", len(chunks))
	}

	if opts.SummarySentences > 0 && in.summarizer != nil {
		report.Summary = in.summarizer.Summarize(contents, opts.SummarySentences)
	}
	report.Info, err = in.store.Info(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: collection info: %w", domain.ErrBackendUnavailable, err)
	}
	return report, nil
}

// embedAndStore embeds chunks in batches and adds each batch to the store.
func (in *Ingestor) embedAndStore(ctx context.Context, chunks []domain.Chunk) (int, error) {
	stored := 0
	for start := 0; start < len(chunks); start += in.batchSize {
		batch := chunks[start:min(start+in.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("embed: %w", err)
		}
		n, err := in.store.Add(ctx, batch, vecs)
		if err != nil {
			return stored, fmt.Errorf("store: %w", err)
		}
		stored += n
	}
	return stored, nil
}
