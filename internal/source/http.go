package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// maxPartitionBytes caps a single download.
const maxPartitionBytes = 1 << 30

// ErrTooLarge is returned when a partition exceeds the download limit.
var ErrTooLarge = errors.New("partition exceeds size limit")

// HTTPOptions tunes an HTTPSource.
type HTTPOptions struct {
	// Client is the HTTP client to use. Default: a client without a global
	// timeout, since each fetch carries its own deadline.
	Client *http.Client

	// RequestsPerSecond limits how fast partitions are requested. Zero
	// means unlimited.
	RequestsPerSecond float64

	// MaxBytes caps the size of one partition. Default: 1 GiB.
	MaxBytes int64
}

// HTTPSource downloads partitions from a base URL.
type HTTPSource struct {
	baseURL string
	namer   Namer
	client  *http.Client
	limiter *rate.Limiter
	maxSize int64
}

// NewHTTPSource creates an HTTPSource. baseURL may omit the trailing slash.
func NewHTTPSource(baseURL string, namer Namer, opts HTTPOptions) *HTTPSource {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	maxSize := opts.MaxBytes
	if maxSize <= 0 {
		maxSize = maxPartitionBytes
	}

	return &HTTPSource{
		baseURL: baseURL,
		namer:   namer,
		client:  client,
		limiter: limiter,
		maxSize: maxSize,
	}
}

// Name implements PartitionSource.
func (s *HTTPSource) Name(id string) string {
	return s.namer(id)
}

// URL returns the download URL of partition id.
func (s *HTTPSource) URL(id string) string {
	return s.baseURL + url.PathEscape(s.namer(id))
}

// Fetch implements PartitionSource. A 404 is reported as ErrNotFound.
func (s *HTTPSource) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	target := s.URL(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", target, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: unexpected status %s", target, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", target, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("GET %s: %w (%d bytes)", target, ErrTooLarge, s.maxSize)
	}
	return data, nil
}
