// Package bge provides an asymmetric retrieval embedder in the BGE family.
// Queries are encoded with a retrieval instruction prepended; documents are
// encoded as-is. Use it when passages are indexed once and searched with
// short natural-language queries.
package bge

import (
	"context"
	"time"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/embeddings/ollama"
)

const (
	// DefaultModel is the default BGE embedding model.
	DefaultModel = "bge-base-en-v1.5"

	// QueryInstruction is prepended to query text before encoding. BGE v1.5
	// models are trained with this exact instruction for the query side.
	QueryInstruction = "Represent this sentence for searching relevant passages:"

	warmupTimeout = 120 * time.Second
)

// Embedder encodes queries and documents with a BGE model.
type Embedder struct {
	client *ollama.Client
	dims   int
}

// Config holds configuration for the BGE embedder.
type Config struct {
	// BaseURL is the inference server URL. Defaults to ollama.DefaultBaseURL.
	BaseURL string

	// Model is the embedding model name. Defaults to DefaultModel.
	Model string

	// Device selects the compute device ("cuda"/"cpu"). Empty lets the
	// server pick, preferring an accelerator when present.
	Device string
}

// New creates a BGE embedder and warms the model. Construction is expensive
// (the server loads model weights) and fails fast when the model cannot be
// resolved; construct once per process and reuse.
func New(cfg Config) (*Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client, err := ollama.NewClient(ollama.Config{
		BaseURL: cfg.BaseURL,
		Model:   model,
		Device:  cfg.Device,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	dims, err := client.Warmup(ctx)
	if err != nil {
		return nil, err
	}

	return &Embedder{client: client, dims: dims}, nil
}

// EmbedQuery encodes a query with the retrieval instruction prepended.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, QueryInstruction+text)
	if err != nil {
		return nil, err
	}
	return embeddings.Normalize(vec), nil
}

// EmbedDocuments encodes a batch of passages, aligned positionally with the
// input.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		vecs[i] = embeddings.Normalize(vecs[i])
	}
	return vecs, nil
}

// Dimensions returns the model's vector dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return e.client.Close()
}

var _ embeddings.TextEmbedder = (*Embedder)(nil)
