package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/feedcache"
)

// DefaultFeed is the decay feed location used when none is configured.
const DefaultFeed = "json/decayed/decayed.json"

const maxFeedBytes = 64 << 20

// Source supplies the raw decay feed.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// NewSource returns an HTTP source for http(s) locations and a file source
// for anything else.
func NewSource(location string) Source {
	if location == "" {
		location = DefaultFeed
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location)
	}
	return FileSource{Path: location}
}

// FileSource reads the feed from a local file.
type FileSource struct {
	Path string
}

// Fetch reads the whole file.
func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading decay feed: %w", err)
	}
	return data, nil
}

// Name returns the file path.
func (s FileSource) Name() string { return s.Path }

// HTTPSource downloads the feed with a GET request.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates an HTTPSource with a 30 second timeout.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads the feed. Non-200 responses are errors.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching decay feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, s.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("decay feed from %s exceeds %d byte limit", s.url, maxFeedBytes)
	}
	return body, nil
}

// Name returns the URL.
func (s *HTTPSource) Name() string { return s.url }

// CachedSource records every successful fetch in a feed cache and serves
// the last good copy when the wrapped source fails.
type CachedSource struct {
	Source
	cache  feedcache.Cache
	logger *slog.Logger
}

// NewCachedSource wraps src with cache.
func NewCachedSource(src Source, cache feedcache.Cache, logger *slog.Logger) *CachedSource {
	return &CachedSource{Source: src, cache: cache, logger: logger}
}

// Fetch tries the wrapped source first, then the cache.
func (s *CachedSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.Source.Fetch(ctx)
	if err == nil {
		if werr := s.cache.Write(ctx, data, time.Now().UTC()); werr != nil {
			s.logger.Warn("failed to cache decay feed", "source", s.Name(), "error", werr)
		}
		return data, nil
	}

	cached, ts, cerr := s.cache.LoadLatest(ctx)
	if cerr != nil {
		if !errors.Is(cerr, feedcache.ErrMiss) {
			s.logger.Warn("decay feed cache unreadable", "error", cerr)
		}
		return nil, err
	}
	s.logger.Warn("decay feed unavailable, using cached copy",
		"source", s.Name(),
		"cached_at", ts.UTC().Format(time.RFC3339),
		"error", err,
	)
	return cached, nil
}
