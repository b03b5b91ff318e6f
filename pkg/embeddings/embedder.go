// Package embeddings defines the text-embedding contract used by ingestion
// and retrieval.
//
// All vectors returned by a single TextEmbedder instance share the same
// dimensionality (Dimensions) and are L2-normalized, so the inner product of
// two vectors equals their cosine similarity. Constructing an embedder may be
// expensive (it resolves and warms the underlying model); callers should
// construct one per process and share it by reference.
package embeddings

import "context"

// TextEmbedder provides query and document embedding capabilities.
//
// Implementations must be safe for concurrent use.
type TextEmbedder interface {
	// EmbedQuery converts a search query into a vector embedding.
	// Asymmetric-retrieval models may encode queries differently from
	// documents (e.g. by prepending an instruction).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments converts a batch of passages into vector embeddings.
	// The returned slice has the same length as texts and the i-th element
	// corresponds to texts[i]. An empty batch returns an empty slice and
	// performs no work.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// embedder. Constant for the lifetime of the instance.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}
