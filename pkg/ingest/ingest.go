// Package ingest embeds passages and writes them into named collections of a
// persisted vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/vector"
	"github.com/contextlab/ragstore/pkg/vector/sqlitevec"
)

// ErrIDCountMismatch is returned when the supplied identifier count disagrees
// with the passage count. Surfaced before any storage mutation.
var ErrIDCountMismatch = errors.New("identifier count mismatch")

// Ingestor runs the ingestion pipeline: prepare passages, embed their text,
// write (passage, identifier, embedding) triples into a collection.
//
// The store is opened per Ingest call from the persist directory and closed
// before returning; the Ingestor itself holds no storage state.
type Ingestor struct {
	embedder embeddings.TextEmbedder
	open     vector.StoreOpener
	logger   *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithStoreOpener overrides how the vector store is opened for a persist
// directory. The default opener creates the directory if needed and opens the
// embedded sqlite-vec store inside it.
func WithStoreOpener(open vector.StoreOpener) Option {
	return func(i *Ingestor) {
		i.open = open
	}
}

// Options carries per-call ingestion options.
type Options struct {
	// IDs are caller-supplied passage identifiers. When nil, a fresh random
	// identifier is generated per passage. When set, the count must equal
	// the passage count exactly.
	IDs []string

	// Metadata is zipped positionally with the input texts. Texts beyond
	// the metadata slice get empty metadata.
	Metadata []map[string]any
}

// New creates an Ingestor around the given embedder.
func New(embedder embeddings.TextEmbedder, logger *zap.Logger, opts ...Option) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ing := &Ingestor{
		embedder: embedder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(ing)
	}
	if ing.open == nil {
		logger := ing.logger
		ing.open = func(persistDir string) (vector.Store, error) {
			if err := os.MkdirAll(persistDir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: creating persist directory %s: %v", vector.ErrWrite, persistDir, err)
			}
			return sqlitevec.NewStore(sqlitevec.Config{DBPath: sqlitevec.PathInDir(persistDir)}, logger)
		}
	}
	return ing
}

// IngestText ingests a single passage and returns its identifier.
func (i *Ingestor) IngestText(ctx context.Context, text, collection, persistDir string) (string, error) {
	ids, err := i.Ingest(ctx, []string{text}, collection, persistDir, Options{})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Ingest embeds raw texts and writes them into the named collection under
// persistDir, returning the identifiers used in input order.
func (i *Ingestor) Ingest(ctx context.Context, texts []string, collection, persistDir string, opts Options) ([]string, error) {
	passages := make([]vector.Passage, len(texts))
	for idx, text := range texts {
		p := vector.Passage{Content: text}
		if idx < len(opts.Metadata) {
			p.Metadata = opts.Metadata[idx]
		}
		passages[idx] = p
	}
	return i.IngestPassages(ctx, passages, collection, persistDir, opts.IDs)
}

// IngestPassages embeds pre-structured passages and writes them into the
// named collection under persistDir, returning the identifiers used in input
// order. When ids is nil a fresh random identifier is generated per passage;
// otherwise len(ids) must equal len(passages).
func (i *Ingestor) IngestPassages(ctx context.Context, passages []vector.Passage, collection, persistDir string, ids []string) ([]string, error) {
	ids, err := prepareIDs(passages, ids)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(passages))
	for idx, p := range passages {
		texts[idx] = p.Content
	}

	vecs, err := i.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	store, err := i.open(persistDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	docs := make([]vector.Document, len(passages))
	for idx, p := range passages {
		docs[idx] = vector.Document{
			ID:        ids[idx],
			Passage:   p,
			Embedding: vecs[idx],
		}
	}

	if err := store.Add(ctx, collection, docs); err != nil {
		return nil, err
	}

	i.logger.Info("ingested passages",
		zap.String("collection", collection),
		zap.String("persist_dir", persistDir),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// prepareIDs validates caller-supplied identifiers or generates fresh ones.
// Always runs before the store is opened, so a mismatch leaves the collection
// untouched.
func prepareIDs(passages []vector.Passage, ids []string) ([]string, error) {
	if ids == nil {
		generated := make([]string, len(passages))
		for idx := range generated {
			generated[idx] = uuid.NewString()
		}
		return generated, nil
	}
	if len(ids) != len(passages) {
		return nil, fmt.Errorf("%w: %d identifiers for %d passages", ErrIDCountMismatch, len(ids), len(passages))
	}
	return ids, nil
}
