package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSource reads partitions from a Cloud Storage bucket. Without a
// credentials file, Application Default Credentials are used.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
	namer  Namer
}

// NewGCSSource creates a GCSSource. The caller should Close it when done.
func NewGCSSource(ctx context.Context, bucket, prefix, credentialsFile string, namer Namer) (*GCSSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		namer:  namer,
	}, nil
}

// Name implements PartitionSource.
func (s *GCSSource) Name(id string) string {
	return s.namer(id)
}

// Object returns the object name of partition id.
func (s *GCSSource) Object(id string) string {
	return path.Join(s.prefix, s.namer(id))
}

// Fetch implements PartitionSource.
func (s *GCSSource) Fetch(ctx context.Context, id string) ([]byte, error) {
	object := s.Object(id)

	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, object, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}
