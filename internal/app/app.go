// Package app assembles the configured components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/embedding/ollama"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/llm"
	"ragqa/internal/loader"
	"ragqa/internal/retriever"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/tools"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

// NewEmbedder builds the configured embedding backend. The openai backend
// falls back to the LLM credentials and endpoint.
func NewEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	ec := cfg.Embedder
	timeout := time.Duration(ec.TimeoutSecs) * time.Second
	switch ec.Type {
	case "hashing":
		return hashing.NewEmbedder(ec.Dimension), nil
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL: ec.BaseURL,
			APIKey:  ec.APIKey,
			Model:   ec.Model,
			Timeout: timeout,
		}), nil
	case "openai", "":
		key, base := ec.APIKey, ec.BaseURL
		if key == "" {
			key = cfg.LLM.APIKey
		}
		if base == "" {
			base = cfg.LLM.BaseURL
		}
		return openai.NewClient(openai.Config{
			APIKey:    key,
			BaseURL:   base,
			Model:     ec.Model,
			BatchSize: ec.BatchSize,
			Timeout:   timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", ec.Type)
	}
}

// OpenStore opens the configured vector store.
func OpenStore(ctx context.Context, cfg *config.AppConfig) (vectorstore.Storage, error) {
	vc := cfg.VectorStore
	switch vc.Type {
	case "memory":
		return memory.NewStorage(vc.Collection, vc.MinScore), nil
	case "qdrant":
		if vc.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        vc.Qdrant.URL,
			APIKey:     vc.Qdrant.APIKey,
			Collection: vc.Collection,
			MinScore:   vc.MinScore,
			Timeout:    time.Duration(vc.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "sqlite", "":
		return sqlite.Open(ctx, sqlite.Config{Dir: vc.Path, Collection: vc.Collection, MinScore: vc.MinScore})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", vc.Type)
	}
}

// Tools returns the tool set offered to the generation backend.
func Tools() []domain.Tool { return []domain.Tool{tools.Calculator{}} }

// Query holds the components of the question-answering path.
type Query struct {
	Store     vectorstore.Storage
	Retriever *retriever.Retriever
	Pipeline  *service.Pipeline
}

// Close releases the vector store.
func (q *Query) Close() error { return q.Store.Close() }

// NewQuery wires embedder, store, retriever, generation client and pipeline.
func NewQuery(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Query, error) {
	emb, err := NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	gen, err := llm.NewClient(llm.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector store open failed: %w", err)
	}
	r := retriever.New(emb, st, cfg.Retrieval.K, cfg.RequestTimeout(), logger)
	p := service.NewPipeline(service.PipelineConfig{
		K:               cfg.Retrieval.K,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		Timeout:         cfg.RequestTimeout(),
	}, r, gen, Tools(), logger)
	return &Query{Store: st, Retriever: r, Pipeline: p}, nil
}

// NewIngestor wires loader, chunker, embedder, store and summarizer. The
// caller closes the returned store.
func NewIngestor(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*service.Ingestor, vectorstore.Storage, error) {
	ch, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, nil, err
	}
	emb, err := NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder init failed: %w", err)
	}
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("vector store open failed: %w", err)
	}
	in := service.NewIngestor(loader.New(cfg.Loader.Extensions, logger), ch, emb, st,
		summarizer.NewFrequencySummarizer(), cfg.Embedder.BatchSize, logger)
	return in, st, nil
}
