// Package fetch downloads model assets (encoder weights, vocabularies,
// embedding tables) over HTTP with retry logic.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client downloads files over HTTP with retry logic.
type Client struct {
	httpClient *http.Client
}

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value for 429s
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a Client. The default timeout is long because encoder
// weights run to hundreds of megabytes.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const maxRetries = 3

// Download fetches rawURL into path, creating parent directories as needed.
// The body streams into a temporary file that is renamed onto path, so a
// failed transfer never leaves a partial asset behind. Returns the byte
// count written and *HTTPError for non-2xx responses. Retries on 429 (with
// Retry-After) and 5xx (with exponential backoff: 1s, 2s, 4s). Max 3 retries.
func (c *Client) Download(ctx context.Context, rawURL, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("fetch: create %s: %w", dir, err)
	}

	var lastErr *HTTPError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n, err := save(resp.Body, dir, path)
			resp.Body.Close()
			if err != nil {
				return 0, err
			}
			slog.Info("downloaded asset", "url", rawURL, "path", path, "bytes", n)
			return n, nil
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if err != nil {
			return 0, err
		}

		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}

		if resp.StatusCode == 429 {
			httpErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = httpErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = httpErr
			continue
		}

		return 0, httpErr
	}

	return 0, lastErr
}

// save streams body into a temporary file in dir and renames it onto path.
func save(body io.Reader, dir, path string) (int64, error) {
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return 0, fmt.Errorf("fetch: create temp file: %w", err)
	}
	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("fetch: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("fetch: close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("fetch: chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("fetch: rename %s: %w", tmp.Name(), err)
	}
	return n, nil
}

// backoffDelay returns the wait duration before a retry attempt.
func backoffDelay(attempt int, lastErr *HTTPError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == 429 && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 1s, 2s, 4s
	return time.Duration(1<<(attempt-1)) * time.Second
}
