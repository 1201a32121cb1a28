package readerer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxPageSize caps how much of a fetched page is read.
const MaxPageSize = 10 * 1024 * 1024

// Fetch downloads a page with browser-like headers. Pages larger than
// MaxPageSize are rejected.
func Fetch(ctx context.Context, client *http.Client, pageURL string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Some news sites answer 403 to non-browser agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.8,en;q=0.7")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	if resp.ContentLength > MaxPageSize {
		return nil, fmt.Errorf("fetch %s: content length %d exceeds %d bytes", pageURL, resp.ContentLength, MaxPageSize)
	}

	// Read one byte past the limit to tell a full page from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	if len(body) > MaxPageSize {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", pageURL, MaxPageSize)
	}
	return body, nil
}
