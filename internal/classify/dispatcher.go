package classify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/taxonomist/internal/models"
)

// Defaults for the dispatcher.
const (
	DefaultWorkers   = 4
	DefaultChunkSize = 100
)

// Options configures a Dispatcher.
type Options struct {
	// Workers is the number of concurrent classification calls (default 4)
	Workers int
	// ChunkSize is the number of consecutive questions handed to a worker
	// at once (default 100). It affects scheduling only.
	ChunkSize int
}

// Dispatcher fans questions out to a fixed worker pool and fans the
// records back in, in completion order.
type Dispatcher struct {
	classifier *Classifier
	workers    int
	chunkSize  int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(classifier *Classifier, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Dispatcher{
		classifier: classifier,
		workers:    opts.Workers,
		chunkSize:  opts.ChunkSize,
	}
}

// chunk is a half-open range of question indices.
type chunk struct {
	start, end int
}

// result carries a record with the index of its question.
type result struct {
	index  int
	record models.Record
}

// Run classifies every question and streams one record per question.
//
// Each question is identified by its index. Chunks partition the index
// range, so every index is handed to exactly one worker; the coordinator
// additionally tracks completed indices and drops any repeated completion,
// so the stream never contains a question twice. Records arrive in
// completion order, not corpus order.
//
// The returned channel is closed when all questions are done or ctx is
// cancelled. After cancellation, questions not yet started are not emitted.
func (d *Dispatcher) Run(ctx context.Context, questions []string, vocab *Vocabulary) <-chan models.Record {
	out := make(chan models.Record, d.workers)

	chunks := make(chan chunk)
	results := make(chan result, d.workers)

	// Feed chunks
	go func() {
		defer close(chunks)
		for start := 0; start < len(questions); start += d.chunkSize {
			end := min(start+d.chunkSize, len(questions))
			select {
			case chunks <- chunk{start: start, end: end}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for c := range chunks {
				slog.Debug("worker took chunk", "worker", workerID, "start", c.start, "end", c.end)
				for idx := c.start; idx < c.end; idx++ {
					if ctx.Err() != nil {
						return
					}
					rec := d.classifier.ClassifyOne(ctx, questions[idx], vocab)
					if ctx.Err() != nil {
						// An in-flight call cut short by cancellation is not a backend error.
						return
					}
					select {
					case results <- result{index: idx, record: rec}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Coordinator: exactly-once fan-in
	go func() {
		defer close(out)

		completed := make([]bool, len(questions))
		emitted, duplicates := 0, 0
		for r := range results {
			if completed[r.index] {
				duplicates++
				slog.Warn("dropping duplicate completion", "index", r.index, "question", r.record.Question)
				continue
			}
			completed[r.index] = true

			select {
			case out <- r.record:
				emitted++
			case <-ctx.Done():
				// Drain so workers blocked on results can exit.
				for range results {
				}
				slog.Warn("classification cancelled", "emitted", emitted, "total", len(questions))
				return
			}
		}

		slog.Info("classification dispatch complete", "emitted", emitted, "total", len(questions), "duplicates_dropped", duplicates)
	}()

	return out
}
