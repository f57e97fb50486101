package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/taxonomist/internal/corpus"
	"github.com/raphaelgruber/taxonomist/internal/labels"
	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/service"
	"github.com/spf13/cobra"
)

var (
	classifyResume     bool
	classifyWorkers    int
	classifySampleSize int
	classifyProgress   bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Discover labels and classify every question",
	Long: `Load the corpus, discover the label set (once per corpus) and classify
every question against it. Records are appended to one JSONL file per label
in the clusters directory.

Without --resume existing cluster files are removed first, so every run
writes exactly one record per question.

Examples:
  taxonomist classify
  taxonomist classify --workers 16 --progress
  taxonomist classify --resume
  taxonomist classify -m llama3.1:8b --sample-size 200`,
	PreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("workers") {
			cfg.Workers = classifyWorkers
		}
		if cmd.Flags().Changed("sample-size") {
			cfg.SampleSize = classifySampleSize
		}
	},
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyResume, "resume", false, "skip questions already present in cluster files")
	classifyCmd.Flags().IntVarP(&classifyWorkers, "workers", "w", 0, "number of concurrent classification workers")
	classifyCmd.Flags().IntVar(&classifySampleSize, "sample-size", 0, "questions sampled for label discovery")
	classifyCmd.Flags().BoolVarP(&classifyProgress, "progress", "p", false, "show a progress bar (terminal only)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if cfg.Workers <= 0 || cfg.SampleSize <= 0 {
		return fmt.Errorf("--workers and --sample-size must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator, err := newGenerator(ctx)
	if err != nil {
		return err
	}
	svc := service.NewClassifyService(cfg, generator, collector)

	run := func(ctx context.Context, onProgress func(service.Progress)) (*service.ClassifyResult, error) {
		return svc.Run(ctx, service.ClassifyOptions{
			Resume:     classifyResume,
			OnProgress: onProgress,
			RunID:      runID,
		})
	}

	var result *service.ClassifyResult
	if quietStderr {
		result, err = runClassifyWithProgress(ctx, run)
	} else {
		result, err = run(ctx, nil)
	}

	out := cmd.OutOrStdout()
	if result != nil && result.Questions > 0 {
		printClassifyResult(out, result)
		printMetrics(out, collector.Snapshot())
	}
	return classifyError(err)
}

// classifyError maps pipeline errors to user-facing messages.
func classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, corpus.ErrCorpusNotFound):
		return fmt.Errorf("%w (set TAXONOMIST_CORPUS_PATH or corpus_path in --config)", err)
	case errors.Is(err, labels.ErrNoLabels):
		return fmt.Errorf("%w: check the model output in the log file and retry", err)
	case errors.Is(err, llm.ErrFatalAPI):
		return fmt.Errorf("%w (check provider credentials and quota)", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("classification interrupted, rerun with --resume to continue")
	default:
		return err
	}
}
