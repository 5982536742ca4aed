// Package retriever embeds a query and asks the vector store for the k most
// similar chunks.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/logging"
	"ragqa/internal/vectorstore"
)

// Retriever is the top-k similarity contract over an embedder and a store.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	k        int
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a retriever. defaultK is used when Retrieve is called with k <= 0;
// timeout bounds each call when positive.
func New(e embedding.Embedder, s vectorstore.Storage, defaultK int, timeout time.Duration, logger *slog.Logger) *Retriever {
	if defaultK <= 0 {
		defaultK = 4
	}
	return &Retriever{embedder: e, store: s, k: defaultK, timeout: timeout, log: logging.OrDiscard(logger)}
}

// Retrieve returns at most k results in descending score order. An empty
// collection, a query without embeddable content or nothing above the store's
// floor yields an empty slice. Embedding and store failures wrap
// domain.ErrBackendUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Result, error) {
	if k <= 0 {
		k = r.k
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vec, err := embedding.EmbedOne(ctx, r.embedder, query)
	if err != nil {
		return nil, unavailable("embed query", err)
	}
	if embedding.IsZero(vec) {
		r.log.Debug("query has no embeddable content", "query", query)
		return nil, nil
	}
	results, err := r.store.Query(ctx, vec, k)
	if err != nil {
		return nil, unavailable("query store", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	r.log.Debug("retrieved", "query", query, "k", k, "results", len(results))
	return results, nil
}

// Info passes through the store's collection info.
func (r *Retriever) Info(ctx context.Context) (domain.CollectionInfo, error) {
	return r.store.Info(ctx)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, op, err)
}
