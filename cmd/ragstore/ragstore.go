// Package ragstorecmder
package ragstorecmder

import (
	"github.com/spf13/cobra"

	collectionscmder "github.com/contextlab/ragstore/cmd/ragstore/collections"
	configcmder "github.com/contextlab/ragstore/cmd/ragstore/config"
	ingestcmder "github.com/contextlab/ragstore/cmd/ragstore/ingest"
	querycmder "github.com/contextlab/ragstore/cmd/ragstore/query"
)

const ragstoreLongDesc string = `Ragstore embeds text passages and retrieves them by similarity.

Ingest passages into named collections, then query those collections:
  ragstore ingest notes/*.txt -c notes
  ragstore query "how do neurons communicate" -c notes
  ragstore collections`

const ragstoreShortDesc string = "Ragstore - Passage Embedding and Retrieval"

func NewRagstoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragstore",
		Short: ragstoreShortDesc,
		Long:  ragstoreLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .ragstore config directory")

	// Add subcommands
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(collectionscmder.NewCollectionsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())

	return cmd
}
