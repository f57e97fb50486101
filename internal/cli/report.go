package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/raphaelgruber/taxonomist/internal/service"
)

// maxReportClusters bounds the per-cluster table in the run report.
const maxReportClusters = 20

func printClassifyResult(w io.Writer, r *service.ClassifyResult) {
	fmt.Fprintf(w, "Classification (run %s)\n", r.RunID)
	fmt.Fprintf(w, "═══════════════════════════════════════\n\n")
	fmt.Fprintf(w, "Questions: %d\n", r.Questions)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "Skipped:   %d (already classified)\n", r.Skipped)
	}
	fmt.Fprintf(w, "Written:   %d\n", r.Written)
	fmt.Fprintf(w, "Labels:    %d\n", len(r.Labels))
	fmt.Fprintf(w, "Clusters:  %d\n", r.Clusters)
	fmt.Fprintf(w, "Duration:  %s\n", r.Duration.Round(time.Millisecond))
}

func printMetrics(w io.Writer, s metrics.Snapshot) {
	if len(s.Operations) == 0 && len(s.Clusters) == 0 {
		return
	}

	fmt.Fprintf(w, "\nLLM Statistics (%.1fs)\n", s.ElapsedSeconds)
	fmt.Fprintf(w, "═══════════════════════════════════════\n")

	for _, op := range s.Operations {
		fmt.Fprintf(w, "\n%s:\n", op.Name)
		printOpStats(w, op)
		printTokenStats(w, op)
	}

	if len(s.Clusters) == 0 {
		return
	}
	fmt.Fprintf(w, "\nRecords per cluster:\n")
	for i, c := range s.Clusters {
		if i == maxReportClusters {
			fmt.Fprintf(w, "  ... and %d more\n", len(s.Clusters)-maxReportClusters)
			break
		}
		fmt.Fprintf(w, "  %-30s %d\n", c.Cluster, c.Count)
	}
}

func printOpStats(w io.Writer, op metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

func printTokenStats(w io.Writer, op metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil && op.TotalOutputTokens == nil {
		return
	}
	var in, out int64
	if op.TotalInputTokens != nil {
		in = *op.TotalInputTokens
	}
	if op.TotalOutputTokens != nil {
		out = *op.TotalOutputTokens
	}
	fmt.Fprintf(w, "  Tokens: %d in, %d out\n", in, out)
}

func printSummaries(w io.Writer, path string, summaries []models.Summary) {
	fmt.Fprintf(w, "Summarized %d clusters into %s\n\n", len(summaries), path)
	for _, s := range summaries {
		desc := s.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(w, "  %s (%d)\n", s.Name, s.Count)
		fmt.Fprintf(w, "    %s\n", truncate(desc, 100))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
