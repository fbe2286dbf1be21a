package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage implements Storage on the local filesystem.
type FileStorage struct {
	basePath string
}

// NewFileStorage creates the base directory if needed.
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &FileStorage{basePath: basePath}, nil
}

// Save writes an object. The write goes to a temp file first so a crash
// mid-copy never leaves a truncated object under its final name.
func (fs *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	final := filepath.Join(fs.basePath, name)

	tmp, err := os.CreateTemp(fs.basePath, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write archive data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit archive file: %w", err)
	}
	return nil
}

// Load opens an object for reading.
func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(fs.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	return file, nil
}

// List returns object names with the given prefix.
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Delete removes an object.
func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(fs.basePath, name))
}
