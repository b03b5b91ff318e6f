// Package querycmder provides the query command for similarity search over
// ingested passages.
package querycmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/contextlab/ragstore/cmd/ragstore/setup"
	"github.com/contextlab/ragstore/pkg/config"
	"github.com/contextlab/ragstore/pkg/logger"
	"github.com/contextlab/ragstore/pkg/retrieve"
	"github.com/contextlab/ragstore/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const queryLongDesc string = `Query a collection for the most similar passages.

Embeds the query text and returns the closest passages from the named
collection, ranked by cosine similarity (1.0 means an exact directional match).
The persist directory must already hold an ingested database.

Use --quiet to output only passage identifiers, one per line. This is useful
for piping results into other commands.

Examples:
  ragstore query "how do neurons communicate" -c notes
  ragstore query "market volatility" -c stocks --top 10
  ragstore query "synaptic pruning" -c notes --quiet`

const queryShortDesc string = "Query a collection by similarity"

type queryCommander struct {
	query      string
	collection string
	persistDir string
	topK       uint
	quiet      bool

	viper  *viper.Viper
	logger *zap.Logger
}

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagCollection,
				config.FlagPersistDir,
				config.FlagTopK,
				config.FlagStoreProvider,
				config.FlagStoreTarget,
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagEmbeddingDevice,
			})

			cmder.viper = v
			cmder.collection = v.GetString("retrieval.collection")
			cmder.persistDir = v.GetString("store.persist_dir")
			cmder.topK = v.GetUint("retrieval.top_k")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(debug)
			defer func() { _ = cmder.logger.Sync() }()

			return cmder.run(cmd)
		},
	}

	var collection, persistDir string
	config.AddStringFlag(cmd, fs, config.FlagCollection, &collection)
	config.AddStringFlag(cmd, fs, config.FlagPersistDir, &persistDir)

	var topK uint
	config.AddUintFlag(cmd, fs, config.FlagTopK, &topK)

	var storeProvider, storeTarget string
	config.AddStringFlag(cmd, fs, config.FlagStoreProvider, &storeProvider)
	config.AddStringFlag(cmd, fs, config.FlagStoreTarget, &storeTarget)

	var embProvider, embTarget, embModel, embDevice string
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &embProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &embTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &embModel)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingDevice, &embDevice)

	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only passage identifiers, one per line (for piping)")

	return cmd
}

func (c *queryCommander) run(cmd *cobra.Command) error {
	if c.collection == "" {
		return fmt.Errorf("no collection given: use --collection or set retrieval.collection")
	}

	embedder, err := setup.Embedder(c.viper)
	if err != nil {
		return err
	}
	defer embedder.Close()

	var opts []retrieve.Option
	if opener := setup.StoreOpener(c.viper, c.logger); opener != nil {
		opts = append(opts, retrieve.WithStoreOpener(opener))
	}

	retriever, err := retrieve.New(embedder, c.persistDir, c.logger, opts...)
	if err != nil {
		return err
	}

	results, err := retriever.RetrieveWithScores(cmd.Context(), c.query, c.collection, int(c.topK))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(results) == 0 {
		if !c.quiet {
			fmt.Fprintln(out, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range results {
			fmt.Fprintln(out, result.ID)
		}
		return nil
	}

	fmt.Fprintf(out, "\n%s %s\n\n",
		headerStyle.Render("Results for:"),
		idStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, result := range results {
		printResult(out, i+1, result)
	}

	return nil
}

func printResult(out io.Writer, rank int, result retrieve.ScoredPassage) {
	fmt.Fprintf(out, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		idStyle.Render(result.ID),
	)

	preview := utils.Truncate(strings.ReplaceAll(result.Passage.Content, "\n", " "), 200)
	fmt.Fprintf(out, "  %s\n", previewStyle.Render(preview))

	if source, ok := result.Passage.Metadata["source"].(string); ok && source != "" {
		fmt.Fprintf(out, "  %s\n", dimStyle.Render(source))
	}

	fmt.Fprintln(out)
}
