package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/taxonomist/internal/service"
	"github.com/spf13/cobra"
)

var summarizeSampleSize int

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Describe every cluster and write the summary document",
	Long: `Read every cluster file, sample its questions, ask the LLM for a short
description and write a single JSON array of {name, description, count}
to the summary path.

Examples:
  taxonomist summarize
  taxonomist summarize --sample-size 20`,
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().IntVar(&summarizeSampleSize, "sample-size", 0, "questions sampled per cluster")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("sample-size") {
		if summarizeSampleSize <= 0 {
			return fmt.Errorf("--sample-size must be positive")
		}
		cfg.SummarySampleSize = summarizeSampleSize
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator, err := newGenerator(ctx)
	if err != nil {
		return err
	}

	summaries, err := service.NewSummarizeService(cfg, generator).Run(ctx)
	if err != nil {
		return classifyError(err)
	}

	out := cmd.OutOrStdout()
	printSummaries(out, cfg.SummaryPath, summaries)
	printMetrics(out, collector.Snapshot())
	return nil
}
