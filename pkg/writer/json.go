// Package writer provides JSON line and gzip file writers for decoded
// records.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// JSONLineWriter writes one JSON document per line.
type JSONLineWriter[T any] struct {
	encoder *json.Encoder
	count   int64
}

// NewJSONLineWriter creates a JSON line writer on w.
func NewJSONLineWriter[T any](w io.Writer) *JSONLineWriter[T] {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return &JSONLineWriter[T]{encoder: encoder}
}

// Write encodes data as one line.
func (w *JSONLineWriter[T]) Write(data T) error {
	if err := w.encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of lines written.
func (w *JSONLineWriter[T]) Count() int64 {
	return w.count
}

// gzipFile closes the gzip stream before the file under it.
type gzipFile struct {
	*gzip.Writer
	file *os.File
}

func (g *gzipFile) Close() error {
	if err := g.Writer.Close(); err != nil {
		g.file.Close()
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return g.file.Close()
}

// CreateFile creates path for writing. A ".gz" suffix gzip-compresses
// the output at the given level.
func CreateFile(path string, level int) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return file, nil
	}

	gz, err := gzip.NewWriterLevel(file, level)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return &gzipFile{Writer: gz, file: file}, nil
}
