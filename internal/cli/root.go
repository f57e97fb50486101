// Package cli provides the command-line interface for taxonomist.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/raphaelgruber/taxonomist/internal/config"
	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string
	modelFlag  string

	// Global config, metrics and logger cleanup
	cfg           config.Config
	collector     *metrics.Collector
	runID         string
	closeLogger   = func() error { return nil }
	quietStderr   bool
	stderrIsTTY   = func() bool { return term.IsTerminal(int(os.Stderr.Fd())) }
	generatorHook func(context.Context, config.Config, *metrics.Collector) (llm.Generator, error)
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "taxonomist",
	Short: "Cluster support questions into LLM-discovered categories",
	Long: `Taxonomist builds a taxonomy over an unlabeled corpus of customer-support
questions.

The classify phase discovers a label set from a sample of the corpus (once
per corpus, persisted to the labels file) and then assigns every question to
one label, writing one JSONL file per label. The summarize phase describes
each cluster file and writes a single JSON summary document.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if configFile != "" {
			var err error
			cfg, err = config.LoadFile(cfg, configFile)
			if err != nil {
				return err
			}
		}
		if modelFlag != "" {
			cfg.ModelID = modelFlag
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		runID = uuid.New().String()
		quietStderr = progressEnabled(cmd)
		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, runID, quietStderr)
		slog.SetDefault(logger)
		closeLogger = cleanup

		collector = metrics.NewCollector()
		return nil
	},
}

// progressEnabled reports whether cmd will render the progress UI, in
// which case log output on stderr is reduced to errors.
func progressEnabled(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("progress")
	return f != nil && f.Value.String() == "true" && stderrIsTTY()
}

// newGenerator builds the LLM client for the configured provider.
func newGenerator(ctx context.Context) (llm.Generator, error) {
	if generatorHook != nil {
		return generatorHook(ctx, cfg, collector)
	}
	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	return model, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := closeLogger(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", cerr)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file overlaying environment settings")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "LLM model id (overrides TAXONOMIST_MODEL)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(summarizeCmd)
}
