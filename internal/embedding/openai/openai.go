package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
)

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI embeddings client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// Client embeds text through the OpenAI-compatible /embeddings endpoint.
type Client struct {
	api       *goopenai.Client
	model     string
	batchSize int
	timeout   time.Duration
	dimension int
}

// NewClient creates an embeddings client. BaseURL may point at any
// OpenAI-compatible server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: missing API key (set API_KEY or OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:       goopenai.NewClientWithConfig(oc),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		dimension: knownDimensions[cfg.Model],
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the vector size. Unknown models report 0 until the first batch.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: batch,
		Model: goopenai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %w", domain.ErrBackendUnavailable, err)
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("%w: openai embeddings: got %d vectors for %d inputs",
			domain.ErrBackendUnavailable, len(resp.Data), len(batch))
	}
	vecs := make([][]float32, len(batch))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(batch) {
			idx = i
		}
		vecs[idx] = embedding.Normalize(d.Embedding)
	}
	for _, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("%w: openai embeddings: missing vector in response", domain.ErrBackendUnavailable)
		}
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		if len(v) != c.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), c.dimension)
		}
	}
	return vecs, nil
}
