package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "timegate/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxBodyBytes        = 16 << 20

	metaFileName = "meta.json"
	bodyFileName = "body.ics"
)

// Source is one calendar subscription.
type Source struct {
	ID  string
	URL string
}

// FetchResult is the payload of a calendar source and where it came from.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads calendars with conditional requests and keeps the last
// good payload of every URL on disk. When a source is unreachable the cached
// payload is served instead, so a flaky calendar host never empties the gate.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	maxBody  int64
}

// NewFetcher returns a Fetcher caching under cacheDir. An empty cacheDir
// disables the disk cache.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		cacheDir: cacheDir,
		maxBody:  maxBodyBytes,
	}
}

// WithClient replaces the HTTP client; used by tests.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	if c != nil {
		f.client = c
	}
	return f
}

// FetchAll fetches every source in order. Failed sources are logged and
// reported in errs; they never abort the others.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			errs = append(errs, fmt.Errorf("ics %s: %w", src.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches a single source, sending If-None-Match and
// If-Modified-Since from the cached metadata.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	dir := f.cachePath(src.URL)
	meta, cached := f.readCache(dir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if cached != nil {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return f.fallback(src, cached, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := readBody(resp.Body, f.maxBody)
		if err != nil {
			return f.fallback(src, cached, err)
		}
		if dir != "" {
			m := cacheMeta{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := writeCache(dir, m, body); err != nil {
				appLog.Warn("ics cache write failed", "id", src.ID, "err", err)
			}
		}
		appLog.Info("ics fetched", "id", src.ID, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if cached == nil {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics not modified", "id", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		return f.fallback(src, cached, fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// readBody reads at most limit bytes. A larger payload is an error so that a
// truncated calendar never reaches the cache.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("calendar larger than %d bytes", limit)
	}
	return body, nil
}

func (f *Fetcher) fallback(src Source, cached []byte, cause error) (FetchResult, error) {
	if cached == nil {
		return FetchResult{}, cause
	}
	appLog.Warn("ics fetch failed, serving cached body", "id", src.ID, "err", cause)
	return FetchResult{Source: src, Body: cached, FromCache: true}, nil
}

// cachePath is the per-URL cache directory, or "" when caching is off.
func (f *Fetcher) cachePath(rawURL string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

// readCache returns the cached metadata and body. A nil body means there is
// nothing usable on disk.
func (f *Fetcher) readCache(dir string) (cacheMeta, []byte) {
	var meta cacheMeta
	if dir == "" {
		return meta, nil
	}
	body, err := os.ReadFile(filepath.Join(dir, bodyFileName))
	if err != nil || len(body) == 0 {
		return meta, nil
	}
	if data, err := os.ReadFile(filepath.Join(dir, metaFileName)); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	return meta, body
}

// writeCache stores the body before the metadata so a validator never refers
// to a body that is not on disk.
func writeCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, bodyFileName), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFileName), data, 0o600)
}

// redactURL keeps scheme and host only; calendar URLs often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
