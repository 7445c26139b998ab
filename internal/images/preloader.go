// Package images caches row images on local disk ahead of use. Downloads
// are content-addressed by URL hash, so a preload run only fetches what the
// cache is missing.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
)

// Config holds preloader configuration.
type Config struct {
	// CacheDir is the directory downloaded images are stored in. Required.
	CacheDir string
	// Concurrency bounds parallel downloads. Defaults to 4.
	Concurrency int
	// Timeout applies per download. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient is optional; a default client is used when nil.
	HTTPClient *http.Client
	// Logger is optional.
	Logger *slog.Logger
}

// Stats summarizes one preload run. Failed downloads are logged and counted
// rather than aborting the run.
type Stats struct {
	Total      int
	Downloaded int
	Cached     int
	Failed     int
}

// Progress is called after every settled URL with the number done so far
// and the total, starting with (0, total) before the first download.
type Progress func(done, total int)

// Preloader downloads row images into a local cache directory.
type Preloader struct {
	cacheDir    string
	concurrency int
	client      *http.Client
	logger      *slog.Logger
}

// NewPreloader creates a preloader from the given configuration.
func NewPreloader(cfg Config) (*Preloader, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Preloader{
		cacheDir:    cfg.CacheDir,
		concurrency: concurrency,
		client:      client,
		logger:      logger,
	}, nil
}

// Preload fetches every given URL into the cache, skipping ones already
// present. Individual download failures are logged and reflected in the
// returned stats; only cache setup or context errors abort the run.
func (p *Preloader) Preload(ctx context.Context, urls []string, progress Progress) (Stats, error) {
	stats := Stats{Total: len(urls)}
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if progress != nil {
		progress(0, stats.Total)
	}

	var done, downloaded, cached, failed atomic.Int64
	settle := func() {
		if progress != nil {
			progress(int(done.Add(1)), stats.Total)
		} else {
			done.Add(1)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, rawURL := range urls {
		g.Go(func() error {
			defer settle()

			switch err := p.fetch(ctx, rawURL); {
			case err == nil:
				downloaded.Add(1)
			case err == errCached:
				cached.Add(1)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				failed.Add(1)
				p.logger.Warn("failed to preload image", "url", rawURL, "error", err)
			}
			return nil
		})
	}
	err := g.Wait()

	stats.Downloaded = int(downloaded.Load())
	stats.Cached = int(cached.Load())
	stats.Failed = int(failed.Load())
	return stats, err
}

// errCached signals that a URL was already in the cache.
var errCached = fmt.Errorf("already cached")

func (p *Preloader) fetch(ctx context.Context, rawURL string) error {
	cleaned, err := CleanURL(rawURL)
	if err != nil {
		return err
	}

	path := p.cachePath(cleaned)
	if _, err := os.Stat(path); err == nil {
		return errCached
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cleaned, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	// Write through a temp file so a partial download never looks cached.
	tmp, err := os.CreateTemp(p.cacheDir, "download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move image into cache: %w", err)
	}
	return nil
}

// CachePath returns where the given URL is (or would be) cached.
func (p *Preloader) CachePath(rawURL string) (string, error) {
	cleaned, err := CleanURL(rawURL)
	if err != nil {
		return "", err
	}
	return p.cachePath(cleaned), nil
}

func (p *Preloader) cachePath(cleaned string) string {
	sum := sha256.Sum256([]byte(cleaned))
	return filepath.Join(p.cacheDir, hex.EncodeToString(sum[:]))
}

// ClearCache removes the cache directory and everything in it.
func (p *Preloader) ClearCache() error {
	if err := os.RemoveAll(p.cacheDir); err != nil {
		return fmt.Errorf("failed to clear image cache: %w", err)
	}
	return nil
}

// CleanURL normalizes an image URL for fetching and cache addressing:
// the scheme is forced to https so http and https spellings of the same
// image share one cache entry.
func CleanURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse image url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("image url %q has no host", rawURL)
	}
	u.Scheme = "https"
	return u.String(), nil
}
