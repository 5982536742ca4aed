package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	name      string
	minScore  float64
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
	byID      map[string]int
}

// NewStorage creates an empty store. Results scoring below minScore are dropped.
func NewStorage(name string, minScore float64) *Storage {
	return &Storage{name: name, minScore: minScore, byID: make(map[string]int)}
}

// Add appends chunks with their vectors; a known ID is replaced in place. The
// first call fixes the dimension.
func (s *Storage) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return 0, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), dim)
		}
	}
	s.dimension = dim
	for i, c := range chunks {
		if j, ok := s.byID[c.ID]; ok {
			s.chunks[j], s.vectors[j] = c, vectors[i]
			continue
		}
		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, vectors[i])
	}
	return len(chunks), nil
}

// Query returns up to k chunks most similar to vector.
func (s *Storage) Query(_ context.Context, vector []float32, k int) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = vectorstore.Cosine(s.vectors[i], vector)
	}
	idxs := argsortDesc(scores)
	results := make([]domain.Result, 0, min(k, len(idxs)))
	for _, j := range idxs {
		if len(results) == k || scores[j] < s.minScore {
			break
		}
		results = append(results, domain.Result{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// Info describes the collection.
func (s *Storage) Info(context.Context) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CollectionInfo{
		Name:        s.name,
		Count:       len(s.chunks),
		Dimension:   s.dimension,
		Initialized: len(s.chunks) > 0,
		Location:    "memory",
	}, nil
}

// DeleteSource drops the chunks of one source document. Remaining chunks keep
// their relative order.
func (s *Storage) DeleteSource(_ context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks, vectors := s.chunks[:0], s.vectors[:0]
	removed := 0
	for i, c := range s.chunks {
		if c.SourcePath == source {
			removed++
			continue
		}
		chunks = append(chunks, c)
		vectors = append(vectors, s.vectors[i])
	}
	s.chunks, s.vectors = chunks, vectors
	if removed > 0 {
		s.byID = make(map[string]int, len(s.chunks))
		for i, c := range s.chunks {
			s.byID[c.ID] = i
		}
	}
	return removed, nil
}

// Clear removes every chunk and forgets the dimension.
func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	s.byID = make(map[string]int)
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return nil }

// argsortDesc orders indexes by descending value; equal values keep index order.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
