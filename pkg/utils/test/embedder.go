package testutils

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/contextlab/ragstore/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Identical text always maps to an identical unit vector, so exact-match
// queries score a cosine similarity of 1.0.
type MockEmbedder struct {
	// Vectors maps exact text to a fixed embedding, overriding the derived
	// default. Useful to pin the relative ranking of test passages.
	Vectors map[string][]float32

	// QueryPrefix, when non-empty, is prepended to EmbedQuery input before
	// lookup. Lets tests mimic asymmetric providers.
	QueryPrefix string

	// FailOn causes embedding to return an error when the input text matches.
	FailOn string

	// Dims is the vector dimensionality for derived embeddings. Defaults to 4.
	Dims int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Vectors: make(map[string][]float32),
		Dims:    4,
	}
}

func (m *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return m.embed(m.QueryPrefix + text)
}

func (m *MockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.embed(text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.Dims == 0 {
		return 4
	}
	return m.Dims
}

func (m *MockEmbedder) Close() error {
	return nil
}

func (m *MockEmbedder) embed(text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}
	if vec, ok := m.Vectors[text]; ok {
		return embeddings.Normalize(append([]float32(nil), vec...)), nil
	}

	// Derive a stable pseudo-random unit vector from the text.
	dims := m.Dimensions()
	vec := make([]float32, dims)
	h := fnv.New64a()
	for i := range vec {
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		vec[i] = float32(h.Sum64()%1000) + 1
	}
	return embeddings.Normalize(vec), nil
}

var _ embeddings.TextEmbedder = (*MockEmbedder)(nil)
