// Package persistence provides the pluggable storage backends for graph
// data: KGML text files and PostgreSQL.
package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
	"github.com/nesthivep/kgml/internal/kgml"
)

// FileBackend stores the graph as KGML text on disk. Writes go through a
// temp file and rename so a crash mid-write never leaves a torn file.
type FileBackend struct {
	path string
	log  *zap.Logger
}

// NewFileBackend creates a backend writing to the given path. A nil
// logger falls back to a no-op logger.
func NewFileBackend(path string, logger *zap.Logger) *FileBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileBackend{path: path, log: logger.Named("persistence.file")}
}

// Save serializes the graph to KGML text and writes it to the file.
func (b *FileBackend) Save(ctx context.Context, data schemas.GraphData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	text := kgml.Serialize(data)
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write graph file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace graph file %q: %w", b.path, err)
	}
	b.log.Debug("Graph saved", zap.String("path", b.path),
		zap.Int("nodes", len(data.Nodes)), zap.Int("edges", len(data.Edges)))
	return nil
}

// Load reads and decodes the KGML text file. A missing file is not an
// error: it yields an empty graph, so a fresh deployment starts clean.
func (b *FileBackend) Load(ctx context.Context) (schemas.GraphData, error) {
	if err := ctx.Err(); err != nil {
		return schemas.GraphData{}, err
	}
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		b.log.Debug("Graph file absent, starting empty", zap.String("path", b.path))
		return schemas.GraphData{}, nil
	}
	if err != nil {
		return schemas.GraphData{}, fmt.Errorf("read graph file %q: %w", b.path, err)
	}
	data, err := kgml.DecodeGraph(string(raw))
	if err != nil {
		return schemas.GraphData{}, fmt.Errorf("decode graph file %q: %w", b.path, err)
	}
	return data, nil
}
