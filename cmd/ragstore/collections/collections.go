// Package collectionscmder provides the collections command for listing the
// collections persisted in a vector store.
package collectionscmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contextlab/ragstore/pkg/cliui"
	"github.com/contextlab/ragstore/pkg/config"
	"github.com/contextlab/ragstore/pkg/logger"
	vectorutils "github.com/contextlab/ragstore/pkg/vector/utils"
)

const collectionsLongDesc string = `List the collections in the vector store.

For the embedded sqlite provider this reads the database inside the persist
directory; for server providers it asks the configured server.

Examples:
  ragstore collections
  ragstore collections --persist-dir ./vector_db
  ragstore collections --store-provider chroma --store-target http://localhost:8000`

const collectionsShortDesc string = "List collections"

type collectionsCommander struct {
	persistDir    string
	storeProvider string
	storeTarget   string

	logger *zap.Logger
}

func NewCollectionsCmd() *cobra.Command {
	cmder := &collectionsCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "collections",
		Short: collectionsShortDesc,
		Long:  collectionsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagPersistDir,
				config.FlagStoreProvider,
				config.FlagStoreTarget,
			})

			cmder.persistDir = v.GetString("store.persist_dir")
			cmder.storeProvider = v.GetString("store.provider")
			cmder.storeTarget = v.GetString("store.target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(debug)
			defer func() { _ = cmder.logger.Sync() }()

			return cmder.run(cmd)
		},
	}

	var persistDir, storeProvider, storeTarget string
	config.AddStringFlag(cmd, fs, config.FlagPersistDir, &persistDir)
	config.AddStringFlag(cmd, fs, config.FlagStoreProvider, &storeProvider)
	config.AddStringFlag(cmd, fs, config.FlagStoreTarget, &storeTarget)

	return cmd
}

func (c *collectionsCommander) run(cmd *cobra.Command) error {
	if c.storeProvider == "" || c.storeProvider == "sqlite" {
		info, err := os.Stat(c.persistDir)
		if err != nil || !info.IsDir() {
			fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(
				fmt.Sprintf("No vector database found at %s.", c.persistDir)))
			return nil
		}
	}

	store, err := vectorutils.NewStore(&vectorutils.NewStoreOpts{
		ProviderType: c.storeProvider,
		PersistDir:   c.persistDir,
		TargetURL:    c.storeTarget,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.Collections(cmd.Context())
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No collections found."))
		return nil
	}

	fmt.Println()
	for _, name := range names {
		fmt.Printf("  %s\n", cliui.NameStyle.Render(name))
	}
	fmt.Println()

	return nil
}
