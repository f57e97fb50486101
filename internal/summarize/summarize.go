// Package summarize describes each cluster file with an LLM-written
// paragraph and writes the collected summaries as one JSON document.
package summarize

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/raphaelgruber/taxonomist/internal/prompt"
	"github.com/raphaelgruber/taxonomist/internal/sample"
)

// DefaultSampleSize is the number of questions shown to the LLM per cluster.
const DefaultSampleSize = 50

// maxLineSize bounds a single JSONL line.
const maxLineSize = 4 << 20

// Summarizer builds cluster summaries from cluster files.
type Summarizer struct {
	llm        llm.Generator
	sampleSize int
	rng        *rand.Rand
}

// New creates a summarizer. sampleSize <= 0 uses DefaultSampleSize and a
// nil rng uses the global source.
func New(generator llm.Generator, sampleSize int, rng *rand.Rand) *Summarizer {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Summarizer{
		llm:        generator,
		sampleSize: sampleSize,
		rng:        rng,
	}
}

// Summarize describes every cluster file in dir, in directory listing
// order. A malformed line is skipped with a warning; a failed description
// call leaves that cluster's description empty.
func (s *Summarizer) Summarize(ctx context.Context, dir string) ([]models.Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read clusters dir: %w", err)
	}

	summaries := []models.Summary{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != models.ClusterFileExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		summary, err := s.summarizeFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}

	slog.Info("clusters summarized", "clusters", len(summaries), "dir", dir)
	return summaries, nil
}

func (s *Summarizer) summarizeFile(ctx context.Context, path string) (models.Summary, error) {
	lines, err := readLines(path)
	if err != nil {
		return models.Summary{}, err
	}
	name := clusterLabel(lines)
	if name == "" {
		name = models.ClusterName(filepath.Base(path))
	}

	questions := sampleQuestions(path, sample.Of(s.rng, lines, s.sampleSize))

	summary := models.Summary{Name: name, Count: len(lines)}
	if len(questions) == 0 {
		slog.Warn("no usable questions in cluster", "cluster", name, "file", path)
		return summary, nil
	}

	p, err := prompt.DescriptionPrompt(name, questions)
	if err != nil {
		return summary, fmt.Errorf("build description prompt: %w", err)
	}

	description, err := s.llm.Generate(ctx, p, llm.CallOptions{Operation: metrics.OpDescribe})
	if err != nil {
		slog.Error("description call failed", "cluster", name, "error", err)
		return summary, nil
	}
	summary.Description = strings.TrimSpace(description)

	slog.Info("cluster described", "cluster", name, "count", summary.Count, "sampled", len(questions))
	return summary, nil
}

// readLines returns every line of path. Each line is one record, well
// formed or not, so len(lines) is the record count.
func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cluster file: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, bytes.Clone(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cluster file %s: %w", path, err)
	}
	return lines, nil
}

// clusterLabel returns the cluster field of the first well-formed record.
// File names of long labels are shortened, so the record is the source of
// the exact label.
func clusterLabel(lines [][]byte) string {
	for _, line := range lines {
		var rec models.Record
		if err := json.Unmarshal(line, &rec); err == nil && rec.Cluster != "" {
			return rec.Cluster
		}
	}
	return ""
}

// sampleQuestions decodes the question of each sampled line.
func sampleQuestions(path string, lines [][]byte) []string {
	questions := make([]string, 0, len(lines))
	for _, line := range lines {
		var rec models.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed record", "file", path, "error", err)
			continue
		}
		questions = append(questions, rec.Question)
	}
	return questions
}

// Write stores summaries at path as a single indented JSON array,
// replacing any previous document.
func Write(path string, summaries []models.Summary) error {
	if summaries == nil {
		summaries = []models.Summary{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("encode summaries: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*")
	if err != nil {
		return fmt.Errorf("create temp summary: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename summary: %w", err)
	}

	slog.Info("cluster summary saved", "path", path, "clusters", len(summaries))
	return nil
}
