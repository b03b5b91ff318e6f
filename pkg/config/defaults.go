package config

const (
	defaultPersistDir    = "vector_db"
	defaultStoreProvider = "sqlite"

	defaultEmbeddingProvider = "bge"
	defaultEmbeddingTarget   = "http://localhost:11434"

	defaultTopK = 4
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
//
// Embedding.Model stays empty so the provider's own default model applies.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Store: StoreConfig{
			PersistDir: defaultPersistDir,
			Provider:   defaultStoreProvider,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
		},
		Retrieval: RetrievalConfig{
			TopK: defaultTopK,
		},
	}
}
