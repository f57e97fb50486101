package labels

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store persists a label set as plain text, one label per line.
// The existence of the file is what gates rediscovery.
type Store struct {
	path string
}

// NewStore creates a file-based label store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a persisted label file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat label file %s: %w", s.path, err)
}

// Load reads the persisted labels. The file may have been edited by hand,
// so lines go through Normalize: blanks, duplicates, sentinel names and
// colliding labels are dropped.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read label file %s: %w", s.path, err)
	}
	return Normalize(strings.Split(string(data), "\n")), nil
}

// Save writes labels, replacing any previous file. The file is written to
// a temporary sibling and renamed so a crash never leaves a partial set.
func (s *Store) Save(labels []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create label dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".labels-*")
	if err != nil {
		return fmt.Errorf("create temp label file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := tmp.WriteString(strings.Join(labels, "\n")); err != nil {
		tmp.Close()
		return fmt.Errorf("write label file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close label file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename label file: %w", err)
	}
	return nil
}
