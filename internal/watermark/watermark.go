// Package watermark persists the timestamp of the last successfully synced
// highlight so consecutive runs resume where the previous one stopped.
package watermark

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store is the persistence capability for the sync watermark.
//
// Load reports the persisted watermark and whether one exists. A missing or
// malformed persisted value is reported as absent, never as an error that
// aborts a run: the caller falls back to syncing the full history.
//
// Save durably overwrites the watermark. It is called exactly once per run,
// and only after the whole batch for that run was delivered.
type Store interface {
	Load() (float64, bool, error)
	Save(ts float64) error
}

// FileStore persists the watermark as a decimal float in a plain-text file.
type FileStore struct {
	path string
}

// NewFileStore returns a Store backed by the file at path. The file does not
// need to exist; the first Save creates it along with parent directories.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the watermark file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted watermark. A missing file, empty content, or
// content that does not parse as a float all mean "no prior sync".
func (s *FileStore) Load() (float64, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read watermark file %s: %w", s.path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, false, nil
	}

	ts, err := strconv.ParseFloat(content, 64)
	if err != nil {
		// Malformed state is treated like no prior sync rather than a fatal
		// error; the next run replays from the full history.
		return 0, false, nil
	}

	return ts, true, nil
}

// Save overwrites the watermark. The value is written to a temporary file in
// the same directory and renamed into place, so a crash mid-write leaves
// either the old content or the new, never a torn read.
func (s *FileStore) Save(ts float64) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create watermark directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".watermark-*")
	if err != nil {
		return fmt.Errorf("failed to create temp watermark file: %w", err)
	}
	tmpPath := tmp.Name()

	content := strconv.FormatFloat(ts, 'f', -1, 64)
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp watermark file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace watermark file %s: %w", s.path, err)
	}

	return nil
}

// MemStore is an in-memory Store for tests. It records how many times Save
// was called so tests can assert on side-effect purity.
type MemStore struct {
	Value     float64
	Present   bool
	SaveCount int
	LoadErr   error
	SaveErr   error
}

// Load implements Store.
func (s *MemStore) Load() (float64, bool, error) {
	if s.LoadErr != nil {
		return 0, false, s.LoadErr
	}
	return s.Value, s.Present, nil
}

// Save implements Store.
func (s *MemStore) Save(ts float64) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Value = ts
	s.Present = true
	s.SaveCount++
	return nil
}
