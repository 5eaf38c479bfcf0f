// Package fetch downloads remote files with an ETag / Last-Modified disk
// cache, falling back to the cached copy when the origin is unavailable.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "schedview/internal/log"
)

// ErrNotModifiedNoCache is returned when the origin answers 304 but nothing
// is cached locally.
var ErrNotModifiedNoCache = errors.New("fetch: 304 Not Modified but no cached body available")

// Result is the outcome of one fetch.
type Result struct {
	URL       string
	Body      []byte
	FromCache bool
	// Changed is false when the body is byte-for-byte what the previous
	// fetch returned (304, or cache fallback).
	Changed bool
}

type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher is safe for concurrent use as long as two calls do not fetch the
// same URL at once.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// New creates a Fetcher caching under cacheDir. A nil client gets a 15s
// timeout client.
func New(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/fetch-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Get fetches url, honoring the cached validators.
func (f *Fetcher) Get(ctx context.Context, url string) (Result, error) {
	if url == "" {
		return Result{}, errors.New("fetch: url is empty")
	}

	cachePath := f.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, fmt.Errorf("fetch: create cache dir: %w", err)
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("fetch start", "url", RedactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("fetch network error, using cached body", err, "url", RedactURL(url))
			return Result{URL: url, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, fmt.Errorf("fetch %s: %w", RedactURL(url), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("fetch %s: read body: %w", RedactURL(url), err)
		}
		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("fetch cache save failed", err, "url", RedactURL(url))
		}
		appLog.Info("fetch success", "url", RedactURL(url), "bytes", len(body))
		return Result{URL: url, Body: body, Changed: string(body) != string(cachedBody)}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, ErrNotModifiedNoCache
		}
		appLog.Debug("fetch not modified; using cache", "url", RedactURL(url))
		return Result{URL: url, Body: cachedBody, FromCache: true}, nil

	default:
		statusErr := fmt.Errorf("fetch %s: %s", RedactURL(url), resp.Status)
		if len(cachedBody) > 0 {
			appLog.Error("fetch non-OK, using cached body", statusErr, "status", resp.StatusCode)
			return Result{URL: url, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, statusErr
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL keeps scheme and host only, e.g.
// https://example.com/private.csv?token=x -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "url://...(redacted)"
	}
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
