package cli

import (
	"fmt"

	"github.com/raphaelgruber/taxonomist/internal/service"
	"github.com/spf13/cobra"
)

var labelsSampleSize int

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Discover and print the label set",
	Long: `Discover the label set from a sample of the corpus and print it.

If the labels file already exists its contents are printed and the LLM is
not called. Delete the file to force rediscovery.

Examples:
  taxonomist labels
  taxonomist labels --sample-size 1000`,
	RunE: runLabels,
}

func init() {
	labelsCmd.Flags().IntVar(&labelsSampleSize, "sample-size", 0, "questions sampled for label discovery")
}

func runLabels(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("sample-size") {
		if labelsSampleSize <= 0 {
			return fmt.Errorf("--sample-size must be positive")
		}
		cfg.SampleSize = labelsSampleSize
	}

	ctx := cmd.Context()
	generator, err := newGenerator(ctx)
	if err != nil {
		return err
	}

	questions, found, err := service.NewClassifyService(cfg, generator, collector).DiscoverLabels(ctx)
	if err != nil {
		return classifyError(err)
	}
	out := cmd.OutOrStdout()
	if len(questions) == 0 {
		fmt.Fprintln(out, "No questions in corpus.")
		return nil
	}

	fmt.Fprintf(out, "%d labels (%s):\n", len(found), cfg.LabelsPath)
	for _, l := range found {
		fmt.Fprintf(out, "  %s\n", l)
	}
	return nil
}
