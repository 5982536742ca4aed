package vectorstore

import (
	"context"
	"math"

	"ragqa/internal/domain"
)

// Storage persists chunk vectors for one named collection and supports
// similarity search. Query results are ordered by descending score; equal
// scores keep insertion order, and re-adding a chunk ID replaces it in
// place. Results scoring below the store's relevance
// floor are dropped.
type Storage interface {
	Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error)
	Query(ctx context.Context, vector []float32, k int) ([]domain.Result, error)
	Info(ctx context.Context) (domain.CollectionInfo, error)
	// DeleteSource removes every chunk whose SourcePath is source and reports
	// how many were removed.
	DeleteSource(ctx context.Context, source string) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
