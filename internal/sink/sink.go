// Package sink appends classification records to per-cluster JSONL files.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
)

// progressEvery is the record interval between progress log lines.
const progressEvery = 100

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// Sink owns one append-only file handle per cluster. Handles are opened on
// the first record of a cluster and stay open until Close.
type Sink struct {
	dir     string
	metrics *metrics.Collector

	mu      sync.Mutex
	files   map[string]*os.File
	written int
	closed  bool
}

// New creates a sink writing into dir. The directory is created if needed.
func New(dir string, collector *metrics.Collector) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create clusters dir: %w", err)
	}
	return &Sink{
		dir:     dir,
		metrics: collector,
		files:   make(map[string]*os.File),
	}, nil
}

// Write appends rec as one JSON line to the file of its cluster.
func (s *Sink) Write(rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	cluster := rec.Cluster
	if cluster == "" {
		cluster = models.ClusterUnknown
		rec.Cluster = cluster
	}

	f, err := s.handle(cluster)
	if err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", f.Name(), err)
	}

	s.written++
	s.metrics.RecordCluster(cluster)
	if s.written%progressEvery == 0 {
		slog.Info("records written", "records", s.written, "clusters", len(s.files))
	}
	return nil
}

// handle returns the open file for cluster, opening it on first use.
// Handles are keyed by file name so two labels mapping to one file share
// a single handle. Caller must hold s.mu.
func (s *Sink) handle(cluster string) (*os.File, error) {
	name := models.ClusterFileName(cluster)
	if f, ok := s.files[name]; ok {
		return f, nil
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cluster file: %w", err)
	}
	s.files[name] = f
	slog.Info("opened cluster file", "cluster", cluster, "clusters", len(s.files))
	return f, nil
}

// Drain writes every record of stream until it is closed or ctx ends.
// onWrite, if set, is called after each successful write with the running
// count. It returns the number of records written. Write errors are logged
// but do not stop the drain; they are joined into the returned error.
func (s *Sink) Drain(ctx context.Context, stream <-chan models.Record, onWrite func(n int, rec models.Record)) (int, error) {
	var (
		n    int
		errs []error
	)
	for {
		select {
		case rec, ok := <-stream:
			if !ok {
				return n, errors.Join(errs...)
			}
			if err := s.Write(rec); err != nil {
				slog.Error("failed to write record", "question", rec.Question, "cluster", rec.Cluster, "error", err)
				errs = append(errs, err)
				continue
			}
			n++
			if onWrite != nil {
				onWrite(n, rec)
			}
		case <-ctx.Done():
			return n, errors.Join(append(errs, ctx.Err())...)
		}
	}
}

// Written returns the number of records written so far.
func (s *Sink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Clusters returns the number of cluster files opened.
func (s *Sink) Clusters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Close syncs and closes every open handle. It is safe to call more than
// once; later calls are no-ops.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for name, f := range s.files {
		if err := f.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", name, err))
		}
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	slog.Info("cluster files closed", "clusters", len(s.files), "records", s.written)
	s.files = nil
	return errors.Join(errs...)
}
