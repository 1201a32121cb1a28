// Package wanikani fetches kanji, vocabulary and assignment data from the
// WaniKani API v2.
package wanikani

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.wanikani.com/v2"
	// Revision pins the API revision the response shapes below were written against.
	Revision = "20170710"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wanikani: %s returned %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("wanikani: %s returned %d", e.URL, e.StatusCode)
}

// Client talks to the WaniKani API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (used for tests and proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client authenticating with the given API token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resource[T any] struct {
	ID            int       `json:"id"`
	Object        string    `json:"object"`
	DataUpdatedAt time.Time `json:"data_updated_at"`
	Data          T         `json:"data"`
}

type collection[T any] struct {
	Object string `json:"object"`
	Pages  struct {
		NextURL *string `json:"next_url"`
	} `json:"pages"`
	TotalCount int           `json:"total_count"`
	Data       []resource[T] `json:"data"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Wanikani-Revision", Revision)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "yomiwake-cli")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("wanikani request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, URL: rawURL}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// getAll follows pages.next_url until the collection is exhausted.
func getAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]resource[T], error) {
	var out []resource[T]
	next := c.endpoint(path, query)
	for next != "" {
		var page collection[T]
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		next = ""
		if page.Pages.NextURL != nil {
			next = *page.Pages.NextURL
		}
	}
	return out, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
