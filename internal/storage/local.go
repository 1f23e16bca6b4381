package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/SagenKoder/hprof-parser/pkg/errors"
)

// LocalSource reads heap dumps from a directory. Absolute keys bypass the
// base directory.
type LocalSource struct {
	basePath string
}

// NewLocalSource creates a LocalSource rooted at basePath.
func NewLocalSource(basePath string) *LocalSource {
	if basePath == "" {
		basePath = "."
	}
	return &LocalSource{basePath: basePath}
}

// Open opens the file stored at key.
func (s *LocalSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", apperrors.ErrInvalidInput, key)
	}
	if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEmptyFile, key)
	}

	return file, nil
}

// Exists checks if a file exists at key.
func (s *LocalSource) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// URL returns the file path of key.
func (s *LocalSource) URL(key string) string {
	return s.path(key)
}

// BasePath returns the directory keys are resolved against.
func (s *LocalSource) BasePath() string {
	return s.basePath
}

func (s *LocalSource) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.basePath, key)
}
