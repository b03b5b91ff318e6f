// Package retrieve runs similarity queries against persisted collections and
// returns passages ranked by cosine similarity.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/vector"
	"github.com/contextlab/ragstore/pkg/vector/sqlitevec"
)

// ErrPersistDirNotFound is returned at construction when the persist
// directory does not exist on disk.
var ErrPersistDirNotFound = errors.New("persist directory not found")

// DefaultK is the number of results returned when the caller passes a
// non-positive k.
const DefaultK = 4

// ScoredPassage is a retrieved passage with its cosine similarity score.
type ScoredPassage struct {
	// ID is the passage identifier within its collection.
	ID string

	Passage vector.Passage

	// Score is the cosine similarity to the query: 1 - distance, where 1.0
	// means identical direction. Exact only for L2-normalized vectors under
	// cosine distance, which both the embedders and the stores guarantee.
	Score float32
}

// Retriever issues similarity queries against the collections persisted under
// one directory. It holds no mutable state across calls: every query
// re-resolves the named collection from disk, so concurrent callers may share
// one Retriever as far as the backend supports concurrent readers.
type Retriever struct {
	embedder   embeddings.TextEmbedder
	persistDir string
	open       vector.StoreOpener
	logger     *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithStoreOpener overrides how the vector store is opened. Server-backed
// openers skip the persist-directory existence check, which only makes sense
// for the embedded store.
func WithStoreOpener(open vector.StoreOpener) Option {
	return func(r *Retriever) {
		r.open = open
	}
}

// New creates a Retriever over persistDir. It fails fast with
// ErrPersistDirNotFound when the directory does not exist; the database must
// have been created by a prior ingestion run.
func New(embedder embeddings.TextEmbedder, persistDir string, logger *zap.Logger, opts ...Option) (*Retriever, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{
		embedder:   embedder,
		persistDir: persistDir,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.open == nil {
		info, err := os.Stat(persistDir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %q", ErrPersistDirNotFound, persistDir)
		}
		logger := r.logger
		r.open = func(dir string) (vector.Store, error) {
			return sqlitevec.NewStore(sqlitevec.Config{DBPath: sqlitevec.PathInDir(dir)}, logger)
		}
	}

	return r, nil
}

// RetrieveWithScores returns the k most similar passages in the named
// collection, ranked by descending cosine similarity. Querying a collection
// absent from the persist directory fails with vector.ErrCollectionNotFound
// rather than returning empty results.
func (r *Retriever) RetrieveWithScores(ctx context.Context, query, collection string, k int) ([]ScoredPassage, error) {
	if k <= 0 {
		k = DefaultK
	}

	store, err := r.open(r.persistDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	names, err := store.Collections(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, collection) {
		return nil, fmt.Errorf("%w: %q in %q", vector.ErrCollectionNotFound, collection, r.persistDir)
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := store.Query(ctx, collection, embedding, k)
	if err != nil {
		return nil, err
	}

	// The store reports cosine distance in its native rank order; convert to
	// similarity without reordering.
	scored := make([]ScoredPassage, len(results))
	for i, res := range results {
		scored[i] = ScoredPassage{
			ID:      res.ID,
			Passage: res.Passage,
			Score:   1 - res.Distance,
		}
	}

	r.logger.Debug("retrieved passages",
		zap.String("collection", collection),
		zap.Int("requested", k),
		zap.Int("results", len(scored)),
	)

	return scored, nil
}
