// Package service orchestrates the classification and summarization phases.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/taxonomist/internal/classify"
	"github.com/raphaelgruber/taxonomist/internal/config"
	"github.com/raphaelgruber/taxonomist/internal/corpus"
	"github.com/raphaelgruber/taxonomist/internal/labels"
	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/raphaelgruber/taxonomist/internal/sink"
)

// ClassifyOptions configures a classification run.
type ClassifyOptions struct {
	// Resume skips questions already recorded under a real label; questions
	// recorded as "error" or "unknown" are retried. Without it existing
	// cluster files are removed before the run.
	Resume bool
	// OnProgress is called after each record is written (optional).
	OnProgress func(Progress)
	// RunID tags the result; a fresh ID is generated when empty.
	RunID string
}

// Progress reports how far a run has come.
type Progress struct {
	Done  int
	Total int
	// Cluster of the record just written
	Cluster string
}

// ClassifyResult summarizes a classification run.
type ClassifyResult struct {
	RunID     string
	Labels    []string
	Questions int // questions in the corpus
	Skipped   int // already classified (resume)
	Written   int // records written this run
	Clusters  int // cluster files touched this run
	Duration  time.Duration
}

// ClassifyService runs the classification phase.
type ClassifyService struct {
	cfg     config.Config
	llm     llm.Generator
	metrics *metrics.Collector
	rng     *rand.Rand
}

// NewClassifyService creates a classification service.
func NewClassifyService(cfg config.Config, generator llm.Generator, collector *metrics.Collector) *ClassifyService {
	return &ClassifyService{
		cfg:     cfg,
		llm:     generator,
		metrics: collector,
	}
}

// WithRand fixes the sampling source (used by tests).
func (s *ClassifyService) WithRand(rng *rand.Rand) *ClassifyService {
	s.rng = rng
	return s
}

// DiscoverLabels loads the corpus and returns its label set, running
// discovery only if no label file exists yet.
func (s *ClassifyService) DiscoverLabels(ctx context.Context) ([]string, []string, error) {
	questions, err := corpus.Load(s.cfg.CorpusPath, s.cfg.TextColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, nil
	}

	discoverer := labels.NewDiscoverer(s.llm, labels.NewStore(s.cfg.LabelsPath), s.rng)
	found, err := discoverer.Discover(ctx, questions, s.cfg.SampleSize)
	if err != nil {
		return questions, nil, fmt.Errorf("discover labels: %w", err)
	}
	if len(found) == 0 {
		return questions, nil, labels.ErrNoLabels
	}
	return questions, found, nil
}

// Run executes the whole classification phase: load corpus, discover
// labels, classify every question and append the records to cluster files.
func (s *ClassifyService) Run(ctx context.Context, opts ClassifyOptions) (*ClassifyResult, error) {
	start := time.Now()
	result := &ClassifyResult{RunID: opts.RunID}
	if result.RunID == "" {
		result.RunID = uuid.New().String()
	}

	questions, vocabulary, err := s.DiscoverLabels(ctx)
	result.Questions = len(questions)
	if err != nil {
		if errors.Is(err, labels.ErrNoLabels) {
			slog.Error("no candidate labels extracted, aborting classification")
		}
		return result, err
	}
	if len(questions) == 0 {
		slog.Warn("no questions loaded, nothing to classify", "path", s.cfg.CorpusPath)
		return result, nil
	}
	result.Labels = vocabulary

	pending := questions
	if opts.Resume {
		done, err := ScanClassified(s.cfg.ClustersDir)
		if err != nil {
			return result, err
		}
		pending = Remaining(questions, done)
		result.Skipped = len(questions) - len(pending)
		if err := ResetSentinels(s.cfg.ClustersDir); err != nil {
			return result, err
		}
		slog.Info("resuming classification", "already_classified", result.Skipped, "remaining", len(pending))
	} else if err := ResetClusters(s.cfg.ClustersDir); err != nil {
		return result, err
	}

	out, err := sink.New(s.cfg.ClustersDir, s.metrics)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := out.Close(); err != nil {
			slog.Error("failed to close cluster files", "error", err)
		}
	}()

	slog.Info("starting classification",
		"run_id", result.RunID,
		"questions", len(pending),
		"labels", len(vocabulary),
		"workers", s.cfg.Workers,
		"chunk_size", s.cfg.ChunkSize)

	dispatcher := classify.NewDispatcher(classify.NewClassifier(s.llm), classify.Options{
		Workers:   s.cfg.Workers,
		ChunkSize: s.cfg.ChunkSize,
	})

	// Cancelling on return unblocks the dispatcher if the drain stops early.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := dispatcher.Run(runCtx, pending, classify.NewVocabulary(vocabulary))
	written, drainErr := out.Drain(runCtx, stream, func(n int, rec models.Record) {
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Done: n, Total: len(pending), Cluster: rec.Cluster})
		}
	})

	result.Written = written
	result.Clusters = out.Clusters()
	result.Duration = time.Since(start)

	if drainErr != nil {
		return result, fmt.Errorf("write records: %w", drainErr)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	slog.Info("classification complete",
		"run_id", result.RunID,
		"written", result.Written,
		"clusters", result.Clusters,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}
