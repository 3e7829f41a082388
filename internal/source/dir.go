package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirSource reads partitions from a local directory.
type DirSource struct {
	dir   string
	namer Namer
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string, namer Namer) *DirSource {
	return &DirSource{dir: dir, namer: namer}
}

// Name implements PartitionSource.
func (s *DirSource) Name(id string) string {
	return s.namer(id)
}

// Path returns the full path of partition id.
func (s *DirSource) Path(id string) string {
	return filepath.Join(s.dir, s.namer(id))
}

// Fetch implements PartitionSource.
func (s *DirSource) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.Path(id), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path(id), err)
	}
	return data, nil
}
