// Package factory constructs TextEmbedder instances from a provider kind
// string, keeping ingestion and retrieval code agnostic of the concrete
// embedding backend.
package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/embeddings/bge"
	"github.com/contextlab/ragstore/pkg/embeddings/hf"
)

// DefaultKind is the provider used when no kind is given.
const DefaultKind = "bge"

// Config holds provider-independent construction options. Zero values fall
// back to each provider's defaults.
type Config struct {
	// BaseURL is the inference server URL.
	BaseURL string

	// Model overrides the provider's default model name.
	Model string

	// Device selects the compute device ("cuda"/"cpu"); empty auto-selects.
	Device string
}

// registry maps a provider kind to its constructor. Keys are lower-case.
var registry = map[string]func(Config) (embeddings.TextEmbedder, error){
	"bge": func(cfg Config) (embeddings.TextEmbedder, error) {
		return bge.New(bge.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Device: cfg.Device})
	},
	"hf": func(cfg Config) (embeddings.TextEmbedder, error) {
		return hf.New(hf.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Device: cfg.Device})
	},
}

// New constructs the embedder registered under kind. Kind matching is
// case-insensitive; an empty kind selects DefaultKind. Unknown kinds fail
// with embeddings.ErrUnknownProvider.
func New(kind string, cfg Config) (embeddings.TextEmbedder, error) {
	if kind == "" {
		kind = DefaultKind
	}
	construct, ok := registry[strings.ToLower(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", embeddings.ErrUnknownProvider, kind, strings.Join(Kinds(), ", "))
	}
	return construct(cfg)
}

// Kinds returns the sorted list of registered provider kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
