package service

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/taxonomist/internal/models"
)

// ScanClassified counts, per question text, how many records the cluster
// files in dir already hold. A missing dir means nothing is classified.
// Malformed lines are skipped, and so are the sentinel files: questions
// that previously ended in "error" or "unknown" are classified again (see
// ResetSentinels).
func ScanClassified(dir string) (map[string]int, error) {
	done := make(map[string]int)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return done, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read clusters dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != models.ClusterFileExt || isSentinelFile(entry.Name()) {
			continue
		}
		if err := scanFile(filepath.Join(dir, entry.Name()), done); err != nil {
			return nil, err
		}
	}
	return done, nil
}

func scanFile(path string, done map[string]int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cluster file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		var rec models.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			slog.Warn("skipping malformed record", "file", path, "error", err)
			continue
		}
		done[rec.Question]++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan cluster file %s: %w", path, err)
	}
	return nil
}

func isSentinelFile(name string) bool {
	return name == models.ClusterFileName(models.ClusterError) ||
		name == models.ClusterFileName(models.ClusterUnknown)
}

// ResetSentinels removes the "error" and "unknown" cluster files so their
// questions, which ScanClassified does not count, are not recorded twice
// when they are retried.
func ResetSentinels(dir string) error {
	for _, cluster := range []string{models.ClusterError, models.ClusterUnknown} {
		path := filepath.Join(dir, models.ClusterFileName(cluster))
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("remove sentinel cluster file: %w", err)
		}
		slog.Info("retrying previously failed questions", "file", path)
	}
	return nil
}

// Remaining returns the questions not yet covered by done, keeping corpus
// order. Repeated questions are matched by multiplicity: if a question
// appears three times in the corpus and twice in done, one copy remains.
// done is consumed.
func Remaining(questions []string, done map[string]int) []string {
	remaining := make([]string, 0, len(questions))
	for _, q := range questions {
		if done[q] > 0 {
			done[q]--
			continue
		}
		remaining = append(remaining, q)
	}
	return remaining
}

// ResetClusters removes the cluster files of a previous run so a fresh run
// writes exactly one record per question.
func ResetClusters(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read clusters dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != models.ClusterFileExt {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove cluster file: %w", err)
		}
		removed++
	}
	if removed > 0 {
		slog.Info("removed previous cluster files", "dir", dir, "files", removed)
	}
	return nil
}
