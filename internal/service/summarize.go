package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/raphaelgruber/taxonomist/internal/config"
	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/raphaelgruber/taxonomist/internal/summarize"
)

// SummarizeService runs the summarization phase.
type SummarizeService struct {
	cfg config.Config
	llm llm.Generator
	rng *rand.Rand
}

// NewSummarizeService creates a summarization service.
func NewSummarizeService(cfg config.Config, generator llm.Generator) *SummarizeService {
	return &SummarizeService{cfg: cfg, llm: generator}
}

// WithRand fixes the sampling source (used by tests).
func (s *SummarizeService) WithRand(rng *rand.Rand) *SummarizeService {
	s.rng = rng
	return s
}

// Run summarizes every cluster file and writes the summary document.
func (s *SummarizeService) Run(ctx context.Context) ([]models.Summary, error) {
	summarizer := summarize.New(s.llm, s.cfg.SummarySampleSize, s.rng)

	summaries, err := summarizer.Summarize(ctx, s.cfg.ClustersDir)
	if err != nil {
		return nil, fmt.Errorf("summarize clusters: %w", err)
	}
	if err := summarize.Write(s.cfg.SummaryPath, summaries); err != nil {
		return summaries, err
	}
	return summaries, nil
}
