// Package ingestcmder provides the ingest command for embedding passages into
// a named collection.
package ingestcmder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/contextlab/ragstore/cmd/ragstore/setup"
	"github.com/contextlab/ragstore/pkg/cliui"
	"github.com/contextlab/ragstore/pkg/config"
	"github.com/contextlab/ragstore/pkg/ingest"
	"github.com/contextlab/ragstore/pkg/logger"
)

const ingestLongDesc string = `Ingest text passages into a named collection.

Each file argument becomes one passage, tagged with its source path. With no
file arguments, passages are read from stdin, one per line.

Identifiers are generated per passage unless --id is given; when given, the
number of --id flags must match the number of passages exactly. Metadata
given with --meta key=value is attached to every ingested passage.

Examples:
  ragstore ingest notes/*.txt -c notes
  cat passages.txt | ragstore ingest -c study --persist-dir ./vector_db
  ragstore ingest intro.txt --id intro-1 -c docs
  ragstore ingest neuro/*.txt -c notes --meta topic=neuroscience`

const ingestShortDesc string = "Ingest passages into a collection"

type ingestCommander struct {
	collection string
	persistDir string
	ids        []string
	meta       []string
	quiet      bool

	viper  *viper.Viper
	logger *zap.Logger
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagCollection,
				config.FlagPersistDir,
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
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(debug)
			defer func() { _ = cmder.logger.Sync() }()

			return cmder.run(cmd, args)
		},
	}

	var collection, persistDir string
	config.AddStringFlag(cmd, fs, config.FlagCollection, &collection)
	config.AddStringFlag(cmd, fs, config.FlagPersistDir, &persistDir)

	var storeProvider, storeTarget string
	config.AddStringFlag(cmd, fs, config.FlagStoreProvider, &storeProvider)
	config.AddStringFlag(cmd, fs, config.FlagStoreTarget, &storeTarget)

	var embProvider, embTarget, embModel, embDevice string
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &embProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &embTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &embModel)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingDevice, &embDevice)

	cmd.Flags().StringArrayVar(&cmder.ids, "id", nil, "Passage identifier (repeatable, must match passage count)")
	cmd.Flags().StringArrayVar(&cmder.meta, "meta", nil, "Metadata key=value attached to every passage (repeatable)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only passage identifiers, one per line (for piping)")

	return cmd
}

func (c *ingestCommander) run(cmd *cobra.Command, args []string) error {
	if c.collection == "" {
		return fmt.Errorf("no collection given: use --collection or set retrieval.collection")
	}

	texts, metadata, err := readPassages(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no passages to ingest")
	}

	common, err := parseMeta(c.meta)
	if err != nil {
		return err
	}
	metadata = applyMeta(metadata, common, len(texts))

	var ingestedIDs []string
	work := func() error {
		embedder, err := setup.Embedder(c.viper)
		if err != nil {
			return err
		}
		defer embedder.Close()

		var opts []ingest.Option
		if opener := setup.StoreOpener(c.viper, c.logger); opener != nil {
			opts = append(opts, ingest.WithStoreOpener(opener))
		}
		ingestor := ingest.New(embedder, c.logger, opts...)

		ingestedIDs, err = ingestor.Ingest(cmd.Context(), texts, c.collection, c.persistDir, ingest.Options{
			IDs:      c.ids,
			Metadata: metadata,
		})
		return err
	}

	if c.quiet {
		if err := work(); err != nil {
			return err
		}
		for _, id := range ingestedIDs {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}

	msg := fmt.Sprintf("Embedding %d passages", len(texts))
	if err := cliui.Step(os.Stdout, msg, work); err != nil {
		return err
	}

	fmt.Printf("\n  %s Ingested %s passages into %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(fmt.Sprintf("%d", len(ingestedIDs))),
		cliui.KeyStyle.Render(c.collection),
		cliui.DimStyle.Render(fmt.Sprintf("(%s)", c.persistDir)),
	)
	return nil
}

// parseMeta parses repeated key=value pairs into a metadata map.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q: expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

// applyMeta merges common metadata into every passage's metadata. Common keys
// win over per-passage keys.
func applyMeta(metadata []map[string]any, common map[string]any, count int) []map[string]any {
	if len(common) == 0 {
		return metadata
	}
	if metadata == nil {
		metadata = make([]map[string]any, count)
	}
	for i := range metadata {
		if metadata[i] == nil {
			metadata[i] = make(map[string]any, len(common))
		}
		for k, v := range common {
			metadata[i][k] = v
		}
	}
	return metadata
}

// readPassages turns file arguments into passages, one passage per file. With
// no arguments it falls back to stdin, one passage per non-empty line.
func readPassages(stdin io.Reader, paths []string) ([]string, []map[string]any, error) {
	if len(paths) == 0 {
		var texts []string
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				texts = append(texts, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, nil, fmt.Errorf("reading stdin: %w", err)
		}
		return texts, nil, nil
	}

	texts := make([]string, 0, len(paths))
	metadata := make([]map[string]any, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading passage file: %w", err)
		}
		texts = append(texts, strings.TrimSpace(string(data)))
		metadata = append(metadata, map[string]any{"source": path})
	}
	return texts, metadata, nil
}
