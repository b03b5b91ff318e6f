package embeddings

import "errors"

var (
	// ErrModelLoad is returned when the named embedding model cannot be
	// resolved or loaded at construction time.
	ErrModelLoad = errors.New("embedding model load failed")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrUnknownProvider is returned by the factory for an unrecognized
	// provider kind.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)
