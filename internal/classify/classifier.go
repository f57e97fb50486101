// Package classify assigns every question of a corpus to one label of a
// fixed vocabulary, one LLM call per question, on a worker pool.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/raphaelgruber/taxonomist/internal/prompt"
)

var (
	// ErrInvalidResponse indicates the completion was not {"label": string}.
	ErrInvalidResponse = errors.New("invalid classification response")

	// ErrUnknownLabel indicates the completion named a label outside the vocabulary.
	ErrUnknownLabel = errors.New("label not in vocabulary")
)

// Vocabulary is the closed, read-only label set of a run.
// It is safe to share between goroutines.
type Vocabulary struct {
	labels []string
	set    map[string]struct{}
}

// NewVocabulary builds a vocabulary from the discovered labels.
func NewVocabulary(labels []string) *Vocabulary {
	v := &Vocabulary{
		labels: append([]string(nil), labels...),
		set:    make(map[string]struct{}, len(labels)),
	}
	for _, l := range labels {
		v.set[l] = struct{}{}
	}
	return v
}

// Labels returns the labels in discovery order.
func (v *Vocabulary) Labels() []string {
	return v.labels
}

// Len returns the number of labels.
func (v *Vocabulary) Len() int {
	return len(v.labels)
}

// Contains reports whether label belongs to the vocabulary.
func (v *Vocabulary) Contains(label string) bool {
	_, ok := v.set[label]
	return ok
}

// Classifier classifies a single question.
type Classifier struct {
	llm llm.Generator
}

// NewClassifier creates a classifier over generator.
func NewClassifier(generator llm.Generator) *Classifier {
	return &Classifier{llm: generator}
}

type classificationResponse struct {
	Label *string `json:"label"`
}

// ClassifyOne asks the LLM for the best label of question. It never fails:
// a failed call yields the "error" cluster and an unusable response the
// "unknown" cluster, both logged with the question.
func (c *Classifier) ClassifyOne(ctx context.Context, question string, vocab *Vocabulary) models.Record {
	p, err := prompt.ClassificationPrompt(question, vocab.Labels())
	if err != nil {
		slog.Error("build classification prompt", "question", question, "error", err)
		return models.Record{Question: question, Cluster: models.ClusterError}
	}

	raw, err := c.llm.Generate(ctx, p, llm.CallOptions{Operation: metrics.OpClassify, JSON: true})
	if err != nil {
		slog.Error("classification call failed", "question", question, "error", err)
		return models.Record{Question: question, Cluster: models.ClusterError}
	}

	label, err := ParseLabel(raw, vocab)
	if err != nil {
		slog.Error("classification response rejected", "question", question, "error", err)
		return models.Record{Question: question, Cluster: models.ClusterUnknown}
	}

	return models.Record{Question: question, Cluster: label}
}

// ParseLabel validates a classification completion against vocab.
func ParseLabel(raw string, vocab *Vocabulary) (string, error) {
	var resp classificationResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.Label == nil {
		return "", fmt.Errorf(`%w: missing "label"`, ErrInvalidResponse)
	}

	label := strings.TrimSpace(*resp.Label)
	if !vocab.Contains(label) {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return label, nil
}
