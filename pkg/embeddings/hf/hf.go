// Package hf provides a general-purpose symmetric sentence embedder. Queries
// and documents are encoded identically. Offered as an alternative to the
// bge embedder under the same contract.
package hf

import (
	"context"
	"time"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/embeddings/ollama"
)

const (
	// DefaultModel is the default sentence-embedding model.
	DefaultModel = "all-minilm"

	warmupTimeout = 120 * time.Second
)

// Embedder encodes queries and documents with a sentence-transformer model.
type Embedder struct {
	client *ollama.Client
	dims   int
}

// Config holds configuration for the sentence embedder.
type Config struct {
	// BaseURL is the inference server URL. Defaults to ollama.DefaultBaseURL.
	BaseURL string

	// Model is the embedding model name. Defaults to DefaultModel.
	Model string

	// Device selects the compute device ("cuda"/"cpu"). Empty lets the
	// server pick, preferring an accelerator when present.
	Device string
}

// New creates a sentence embedder and warms the model. Fails fast when the
// model cannot be resolved; construct once per process and reuse.
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

// EmbedQuery encodes a query. Symmetric models encode queries and documents
// the same way.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, text)
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
