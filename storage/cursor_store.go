package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"willhaben-monitor/models"
)

// FileCursorStore persists the cursor as a single JSON record on disk. It
// assumes one process owns the file; writes go through a temp file and a
// rename so a crash mid-write cannot leave a truncated record.
type FileCursorStore struct {
	path string
}

// NewFileCursorStore creates the data directory if needed and returns a store
// for the given path.
func NewFileCursorStore(path string) (*FileCursorStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cursor store: create data dir: %w", err)
	}
	return &FileCursorStore{path: path}, nil
}

// Load reads the stored cursor. A missing file means "first run" and yields
// (nil, nil), not an error.
func (s *FileCursorStore) Load() (*models.Cursor, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cursor store: read %q: %w", s.path, err)
	}

	var cursor models.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("cursor store: decode %q: %w", s.path, err)
	}
	return &cursor, nil
}

// Save writes the cursor, stamping the record with the write time.
func (s *FileCursorStore) Save(cursor *models.Cursor) error {
	if cursor == nil || cursor.ID == "" {
		return fmt.Errorf("cursor store: refusing to save empty cursor")
	}

	record := *cursor
	record.ObservedAt = time.Now()

	data, err := json.MarshalIndent(&record, "", "  ")
	if err != nil {
		return fmt.Errorf("cursor store: encode cursor %s: %w", cursor.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cursor-*")
	if err != nil {
		return fmt.Errorf("cursor store: create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cursor store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cursor store: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cursor store: replace %q: %w", s.path, err)
	}
	return nil
}

// Reset deletes the stored cursor. A missing file is fine.
func (s *FileCursorStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cursor store: reset %q: %w", s.path, err)
	}
	return nil
}
