// Package configcmder provides the config command for managing persistent
// ragstore configuration stored in the .ragstore/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent ragstore configuration.

Configuration is stored as config.toml in the .ragstore/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  store.persist_dir, store.provider, store.target,
  embedding.provider, embedding.target, embedding.model, embedding.device,
  retrieval.collection, retrieval.top_k

Use subcommands to get, set, or list configuration values:
  ragstore config set <key> <value>    Set a configuration value
  ragstore config get <key>            Get a configuration value
  ragstore config list                 List all configuration values

Examples:
  ragstore config set embedding.provider hf
  ragstore config set store.persist_dir ./vector_db
  ragstore config get retrieval.top_k
  ragstore config list`

const configShortDesc string = "Manage persistent ragstore configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
