package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps the marker as a single line of text.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (time.Time, bool, error) {
	data, err := os.ReadFile(filepath.Clean(f.path))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}

		return time.Time{}, false, fmt.Errorf("failed to read marker: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return time.Time{}, false, nil
	}

	t, err := ParseMarker(string(data))
	if err != nil {
		return time.Time{}, false, err
	}

	return t, true, nil
}

// Save writes through a temp file and rename so a crash never leaves a
// half-written marker.
func (f *FileStore) Save(_ context.Context, t time.Time) error {
	dir := filepath.Dir(f.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".lastrun-*")
	if err != nil {
		return fmt.Errorf("failed to create temp marker: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(FormatMarker(t)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write marker: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace marker: %w", err)
	}

	return nil
}

func (f *FileStore) Close() error {
	return nil
}
