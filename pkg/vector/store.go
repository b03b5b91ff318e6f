// Package vector provides interfaces and implementations for persisted,
// collection-scoped vector storage.
package vector

import "context"

// Passage is a unit of text content plus scalar metadata. Immutable once
// constructed; owned by whichever collection it is ingested into.
type Passage struct {
	// Content is the passage text.
	Content string

	// Metadata carries arbitrary string-keyed scalar values (source, page,
	// section, ...). May be nil.
	Metadata map[string]any
}

// Document is a stored (identifier, passage, embedding) triple.
type Document struct {
	// ID is the unique passage identifier within its collection.
	ID string

	Passage

	// Embedding is the L2-normalized vector computed from Content.
	Embedding []float32
}

// QueryResult is a single nearest-neighbor hit.
type QueryResult struct {
	Document

	// Distance is the cosine distance to the query vector: 0 for identical
	// direction, larger is farther. Callers wanting similarity compute
	// 1 - Distance.
	Distance float32
}

// StoreOpener opens the Store anchored at a persist directory. Ingestion and
// retrieval open the store per call and close it before returning, so the
// persisted index is always re-resolved from disk.
type StoreOpener func(persistDir string) (Store, error)

// Store handles storage and retrieval of documents grouped into named
// collections. A collection is created lazily on the first Add and survives
// process restarts for persisted backends; it is never deleted implicitly.
type Store interface {
	// Collections lists the names of all collections in the store.
	Collections(ctx context.Context) ([]string, error)

	// Add writes documents into the named collection, creating it if absent.
	// Re-adding an existing ID is backend-defined (typically an update).
	Add(ctx context.Context, collection string, docs []Document) error

	// Query returns the k nearest documents in the named collection under
	// cosine distance, closest first. Querying an absent collection fails
	// with ErrCollectionNotFound.
	Query(ctx context.Context, collection string, embedding []float32, k int) ([]QueryResult, error)

	// Close releases any resources held by the store.
	Close() error
}
