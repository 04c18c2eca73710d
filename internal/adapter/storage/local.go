package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage is the working directory where artifacts are written before
// they are uploaded.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Create opens a new artifact file, truncating any leftover from an earlier
// run with the same name.
func (l *LocalStorage) Create(name string) (*os.File, error) {
	file, err := os.OpenFile(l.GetPath(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}
	return file, nil
}

func (l *LocalStorage) Size(name string) (int64, error) {
	info, err := os.Stat(l.GetPath(name))
	if err != nil {
		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return info.Size(), nil
}

func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(l.GetPath(name)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetPath(filename string) string {
	return filepath.Join(l.basePath, filename)
}
