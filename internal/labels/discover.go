// Package labels discovers the closed label vocabulary for a corpus and
// persists it so discovery runs at most once.
package labels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/raphaelgruber/taxonomist/internal/prompt"
	"github.com/raphaelgruber/taxonomist/internal/sample"
)

// ErrNoLabels indicates discovery produced an empty vocabulary.
// Classification must not proceed.
var ErrNoLabels = errors.New("no candidate labels")

// Discoverer extracts candidate labels from a corpus sample.
type Discoverer struct {
	llm   llm.Generator
	store *Store
	rng   *rand.Rand
}

// NewDiscoverer creates a discoverer. A nil rng uses the global source.
func NewDiscoverer(generator llm.Generator, store *Store, rng *rand.Rand) *Discoverer {
	return &Discoverer{
		llm:   generator,
		store: store,
		rng:   rng,
	}
}

// labelResponse is the structure the extraction prompt asks for.
type labelResponse struct {
	Labels *[]string `json:"labels"`
}

// Discover returns the label set for corpus.
//
// If the store already holds labels they are loaded (see Store.Load) and the LLM is
// not called, even if the corpus has changed since. Otherwise a sample of
// min(sampleSize, len(corpus)) questions is sent in one deterministic call.
// An LLM failure or an unusable response yields an empty list and a nil
// error; only store I/O failures are returned as errors. Labels are
// persisted only when the list is non-empty.
func (d *Discoverer) Discover(ctx context.Context, corpus []string, sampleSize int) ([]string, error) {
	exists, err := d.store.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		labels, err := d.store.Load()
		if err != nil {
			return nil, err
		}
		slog.Info("using persisted labels", "path", d.store.Path(), "labels", len(labels))
		return labels, nil
	}

	questions := sample.Of(d.rng, corpus, sampleSize)
	if len(questions) == 0 {
		slog.Warn("no questions to sample for label discovery")
		return nil, nil
	}

	p, err := prompt.LabelExtractionPrompt(questions)
	if err != nil {
		return nil, fmt.Errorf("build label prompt: %w", err)
	}

	slog.Info("extracting candidate labels", "sample", len(questions), "corpus", len(corpus))
	raw, err := d.llm.Generate(ctx, p, llm.CallOptions{
		Operation:   metrics.OpDiscover,
		Temperature: llm.Temperature(0),
		JSON:        true,
	})
	if err != nil {
		slog.Error("label extraction call failed", "error", err)
		return nil, nil
	}

	labels, err := ParseLabels(raw)
	if err != nil {
		slog.Error("label extraction response unusable", "error", err, "response", truncate(raw, 200))
		return nil, nil
	}
	if len(labels) == 0 {
		slog.Error("label extraction returned no labels")
		return nil, nil
	}

	if err := d.store.Save(labels); err != nil {
		return nil, err
	}
	slog.Info("candidate labels extracted", "labels", labels, "path", d.store.Path())
	return labels, nil
}

// ParseLabels decodes {"labels": [...]} and normalizes the list with
// Normalize.
func ParseLabels(raw string) ([]string, error) {
	var resp labelResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &resp); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if resp.Labels == nil {
		return nil, errors.New(`response has no "labels" key`)
	}
	return Normalize(*resp.Labels), nil
}

// Normalize cleans a label list: labels are trimmed, internal whitespace
// runs collapsed to one space, blanks and sentinel names dropped, and
// duplicates removed keeping first occurrence. A label whose cluster file
// name collides with an earlier label or a sentinel file ("a/b" and "a_b")
// is dropped too, so every label owns its file.
func Normalize(raw []string) []string {
	files := map[string]bool{
		models.ClusterFileName(models.ClusterError):   true,
		models.ClusterFileName(models.ClusterUnknown): true,
	}
	seen := make(map[string]bool, len(raw))
	labels := make([]string, 0, len(raw))
	for _, label := range raw {
		label = strings.Join(strings.Fields(label), " ")
		if label == "" || models.IsSentinel(label) || seen[label] {
			continue
		}
		file := models.ClusterFileName(label)
		if files[file] {
			slog.Warn("dropping label with colliding cluster file", "label", label, "file", file)
			continue
		}
		seen[label] = true
		files[file] = true
		labels = append(labels, label)
	}
	return labels
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
