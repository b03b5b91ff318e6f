package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent ragstore configuration stored as
// config.toml in the .ragstore/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Store     StoreConfig     `toml:"store"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	// PersistDir is the directory holding the on-disk vector database.
	PersistDir string `toml:"persist_dir,omitempty"`

	// Provider selects the store backend: sqlite, chroma, or qdrant.
	Provider string `toml:"provider,omitempty"`

	// Target is the server address for the chroma and qdrant providers.
	// Unused by the embedded sqlite provider.
	Target string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`

	// Model overrides the provider's default model when non-empty.
	Model string `toml:"model,omitempty"`

	// Device hints where the inference server should run the model.
	// Empty means auto-detect; "cpu" forces CPU inference.
	Device string `toml:"device,omitempty"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	// Collection is the default collection name for query commands.
	Collection string `toml:"collection,omitempty"`

	// TopK is the default number of passages returned per query.
	TopK uint `toml:"top_k,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"store.persist_dir": {
		get: func(c *Config) string { return c.Store.PersistDir },
		set: func(c *Config, v string) error { c.Store.PersistDir = v; return nil },
	},
	"store.provider": {
		get: func(c *Config) string { return c.Store.Provider },
		set: func(c *Config, v string) error { c.Store.Provider = v; return nil },
	},
	"store.target": {
		get: func(c *Config) string { return c.Store.Target },
		set: func(c *Config, v string) error { c.Store.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.device": {
		get: func(c *Config) string { return c.Embedding.Device },
		set: func(c *Config, v string) error { c.Embedding.Device = v; return nil },
	},
	"retrieval.collection": {
		get: func(c *Config) string { return c.Retrieval.Collection },
		set: func(c *Config, v string) error { c.Retrieval.Collection = v; return nil },
	},
	"retrieval.top_k": {
		get: func(c *Config) string {
			if c.Retrieval.TopK == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Retrieval.TopK), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.top_k: %w", err)
			}
			c.Retrieval.TopK = uint(n)
			return nil
		},
	},
}
