// Package vectorutils is the vector store utility package
package vectorutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/contextlab/ragstore/pkg/vector"
	"github.com/contextlab/ragstore/pkg/vector/chroma"
	"github.com/contextlab/ragstore/pkg/vector/qdrant"
	"github.com/contextlab/ragstore/pkg/vector/sqlitevec"
)

type NewStoreOpts struct {
	// ProviderType selects the backend: "sqlite" (embedded, default),
	// "chroma" or "qdrant" (servers).
	ProviderType string

	// PersistDir anchors the embedded backend's database file.
	PersistDir string

	// TargetURL is the server address for the chroma and qdrant backends.
	TargetURL string

	Logger *zap.Logger
}

func NewStore(o *NewStoreOpts) (vector.Store, error) {
	switch o.ProviderType {
	case "", "sqlite":
		return sqlitevec.NewStore(sqlitevec.Config{
			DBPath: sqlitevec.PathInDir(o.PersistDir),
		}, o.Logger)
	case "chroma":
		return chroma.NewStore(chroma.Config{
			URL: o.TargetURL,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewStore(qdrant.Config{
			Addr: o.TargetURL,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
