// Package setup builds shared runtime pieces for ragstore commands from
// resolved configuration.
package setup

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/contextlab/ragstore/pkg/embeddings"
	"github.com/contextlab/ragstore/pkg/embeddings/factory"
	"github.com/contextlab/ragstore/pkg/vector"
	vectorutils "github.com/contextlab/ragstore/pkg/vector/utils"
)

// Embedder constructs the configured embedding provider. The constructor
// warms the model up, so this call blocks until the inference server answers.
func Embedder(v *viper.Viper) (embeddings.TextEmbedder, error) {
	return factory.New(v.GetString("embedding.provider"), factory.Config{
		BaseURL: v.GetString("embedding.target"),
		Model:   v.GetString("embedding.model"),
		Device:  v.GetString("embedding.device"),
	})
}

// StoreOpener returns a store opener for server-backed providers, or nil when
// the embedded sqlite provider is configured. A nil opener tells the ingest
// and retrieve packages to use their own persist-directory defaults.
func StoreOpener(v *viper.Viper, logger *zap.Logger) vector.StoreOpener {
	provider := v.GetString("store.provider")
	if provider == "" || provider == "sqlite" {
		return nil
	}

	target := v.GetString("store.target")
	return func(persistDir string) (vector.Store, error) {
		return vectorutils.NewStore(&vectorutils.NewStoreOpts{
			ProviderType: provider,
			PersistDir:   persistDir,
			TargetURL:    target,
			Logger:       logger,
		})
	}
}
