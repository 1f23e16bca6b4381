// Package storage opens heap dumps from the local filesystem or object storage.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/SagenKoder/hprof-parser/pkg/compression"
	"github.com/SagenKoder/hprof-parser/pkg/config"
	apperrors "github.com/SagenKoder/hprof-parser/pkg/errors"
)

// Source is a read-only store of heap dumps addressed by key. Streams are
// read strictly forward; no implementation needs to support seeking.
type Source interface {
	// Open returns the raw stream stored at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns a human-readable location for key.
	URL(key string) string
}

// SourceType represents the type of storage backend.
type SourceType string

const (
	SourceTypeLocal SourceType = "local"
	SourceTypeCOS   SourceType = "cos"
)

// NewSource creates a Source from the storage configuration.
func NewSource(cfg *config.StorageConfig) (Source, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch SourceType(cfg.Type) {
	case SourceTypeCOS:
		return NewCOSSource(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalSource(cfg.LocalPath), nil
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "storage config is nil", nil)
	}

	switch SourceType(cfg.Type) {
	case SourceTypeLocal, "":
		return nil
	case SourceTypeCOS:
		if cfg.Bucket == "" {
			return fmt.Errorf("%w: COS bucket is required", apperrors.ErrConfigError)
		}
		if cfg.Region == "" {
			return fmt.Errorf("%w: COS region is required", apperrors.ErrConfigError)
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("%w: COS credentials are required", apperrors.ErrConfigError)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported storage type: %s", apperrors.ErrConfigError, cfg.Type)
	}
}

// Decompress wraps rc so that gzip and zstd dumps read as plain HPROF.
// Closing the result closes rc.
func Decompress(rc io.ReadCloser) (io.ReadCloser, compression.Type, error) {
	r, typ, err := compression.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, typ, err
	}
	return &stackedReader{Reader: r, closers: []io.Closer{r, rc}}, typ, nil
}

// OpenDump opens key from src and decompresses it if needed.
func OpenDump(ctx context.Context, src Source, key string) (io.ReadCloser, compression.Type, error) {
	rc, err := src.Open(ctx, key)
	if err != nil {
		return nil, compression.TypeNone, err
	}
	return Decompress(rc)
}

// stackedReader closes every layer of a reader stack, innermost last.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
