// Package corpus loads the question corpus from a CSV file.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

var (
	// ErrCorpusNotFound indicates the corpus file does not exist.
	ErrCorpusNotFound = errors.New("corpus file not found")

	// ErrMissingColumn indicates the header row lacks the text column.
	ErrMissingColumn = errors.New("text column not found in header")
)

// Load reads the CSV at path and returns the trimmed, non-empty values of
// column, in file order. Rows too short to contain the column are skipped.
func Load(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	questions, err := Read(f, column)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	slog.Info("corpus loaded", "path", path, "questions", len(questions))
	return questions, nil
}

// Read parses CSV from r. The first row is the header.
func Read(r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %q (empty file)", ErrMissingColumn, column)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}

	var (
		questions []string
		skipped   int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if idx >= len(row) {
			skipped++
			continue
		}
		q := strings.TrimSpace(row[idx])
		if q == "" {
			skipped++
			continue
		}
		questions = append(questions, q)
	}

	if skipped > 0 {
		slog.Debug("skipped rows without text", "column", column, "skipped", skipped)
	}
	return questions, nil
}
