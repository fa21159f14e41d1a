package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMarkerFile is the marker file name inside the data directory.
const DefaultMarkerFile = "last_transaction.txt"

// FileMarkerStore keeps the marker as a single line in a text file.
// An absent file means no marker.
type FileMarkerStore struct {
	path string
}

// NewFileMarkerStore creates a marker store backed by path.
func NewFileMarkerStore(path string) (*FileMarkerStore, error) {
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}
	return &FileMarkerStore{path: path}, nil
}

// Path returns the marker file location.
func (s *FileMarkerStore) Path() string {
	return s.path
}

// Get returns the stored legId, or "" when the file does not exist.
func (s *FileMarkerStore) Get(ctx context.Context) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read marker file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// Set replaces the marker. The write goes through a temp file and a rename so
// a crash never leaves a truncated marker behind.
func (s *FileMarkerStore) Set(ctx context.Context, legID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLegID(legID); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return fmt.Errorf("failed to create temp marker file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(legID); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close marker file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace marker file: %w", err)
	}

	return nil
}

// Reset removes the marker file. A missing file is not an error.
func (s *FileMarkerStore) Reset(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove marker file: %w", err)
	}
	return nil
}
