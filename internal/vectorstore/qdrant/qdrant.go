package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ragqa/internal/domain"
)

var errNotFound = errors.New("qdrant: collection not found")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection on first Add.
type Storage struct {
	url        string
	apiKey     string
	collection string
	minScore   float64
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	MinScore   float64
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		minScore:   cfg.MinScore,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	if s.dimension == 0 {
		info, err := s.Info(ctx)
		if err != nil {
			return err
		}
		s.dimension = info.Dimension
	}
	if s.dimension != 0 {
		if s.dimension != dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, dimension, s.dimension)
		}
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

// Add upserts points keyed by chunk ID.
func (s *Storage) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return 0, err
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != s.dimension {
			return 0, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[i]), s.dimension)
		}
		points[i] = map[string]any{
			"id":     c.ID,
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id": c.ID,
				"source":   c.SourcePath,
				"offset":   c.Offset,
				"index":    c.Index,
				"text":     c.Text,
				"metadata": c.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Query searches the collection with score_threshold set to the floor.
func (s *Storage) Query(ctx context.Context, vector []float32, k int) ([]domain.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":          vector,
		"limit":           k,
		"with_payload":    true,
		"score_threshold": s.minScore,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				ChunkID  string            `json:"chunk_id"`
				Source   string            `json:"source"`
				Offset   int               `json:"offset"`
				Index    int               `json:"index"`
				Text     string            `json:"text"`
				Metadata map[string]string `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		results = append(results, domain.Result{
			Chunk: domain.Chunk{
				ID:         p.ChunkID,
				Text:       p.Text,
				SourcePath: p.Source,
				Offset:     p.Offset,
				Index:      p.Index,
				Metadata:   p.Metadata,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// Info reads point count and vector size. A missing collection is reported as
// uninitialized rather than as an error.
func (s *Storage) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Name: s.collection, Location: s.url}
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &resp)
	if errors.Is(err, errNotFound) {
		return info, nil
	}
	if err != nil {
		return info, err
	}
	info.Count = resp.Result.PointsCount
	info.Dimension = resp.Result.Config.Params.Vectors.Size
	info.Initialized = true
	return info, nil
}

// DeleteSource counts and then deletes the points whose payload source matches.
func (s *Storage) DeleteSource(ctx context.Context, source string) (int, error) {
	filter := map[string]any{
		"must": []map[string]any{{"key": "source", "match": map[string]any{"value": source}}},
	}
	var count struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"filter": filter, "exact": true}, &count)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if count.Result.Count == 0 {
		return 0, nil
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/delete?wait=true", map[string]any{"filter": filter}, nil); err != nil {
		return 0, err
	}
	return count.Result.Count, nil
}

// Clear drops the collection.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if errors.Is(err, errNotFound) {
		err = nil
	}
	if err == nil {
		s.dimension = 0
	}
	return err
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
