// =============================================================================
// Rural Credit Season Pipeline - Partition Sources
// =============================================================================
//
// A partition source is a key-value lookup from a partition id (a season
// label such as "2020-2021") to the raw bytes of that partition. The loader
// only depends on "fetch bytes for id, or fail"; where the bytes come from is
// decided here.
//
// IMPLEMENTATIONS:
//   - DirSource  : files in a local directory
//   - HTTPSource : files under a base URL (the published datasets)
//   - GCSSource  : objects in a Google Cloud Storage bucket
//
// =============================================================================

package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/config"
)

// ErrNotFound is returned (wrapped) when a partition does not exist.
var ErrNotFound = errors.New("partition not found")

// PartitionSource fetches raw partition content.
type PartitionSource interface {
	// Fetch returns the raw bytes of partition id. It must honor ctx
	// cancellation and deadlines.
	Fetch(ctx context.Context, id string) ([]byte, error)

	// Name returns the file name used for partition id. The extension
	// drives format detection.
	Name(id string) string
}

// Namer maps a partition id to its file name.
type Namer func(id string) string

// PatternNamer builds a Namer from a file pattern containing the season
// placeholder.
func PatternNamer(pattern string) Namer {
	return func(id string) string {
		return strings.ReplaceAll(pattern, config.SeasonPlaceholder, id)
	}
}

// New builds the source described by cfg.
//
// PARAMETERS:
//   - ctx: Used to construct clients that need it (GCS).
//   - cfg: The source configuration.
//
// RETURNS:
//   - The configured PartitionSource.
//   - An error for an unknown kind or a client that cannot be created.
func New(ctx context.Context, cfg config.SourceConfig) (PartitionSource, error) {
	namer := PatternNamer(cfg.FilePattern)

	switch cfg.Kind {
	case "dir":
		return NewDirSource(cfg.Dir, namer), nil
	case "http":
		return NewHTTPSource(cfg.BaseURL, namer, HTTPOptions{
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case "gcs":
		return NewGCSSource(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile, namer)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
