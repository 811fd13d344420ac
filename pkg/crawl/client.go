// Package crawl scrapes websites through a Firecrawl-compatible API, spreading
// load across a pool of provider keys.
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.firecrawl.dev"

type PageMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
	OGImage     string `json:"ogImage,omitempty"`
	SourceURL   string `json:"sourceURL,omitempty"`
	StatusCode  int    `json:"statusCode,omitempty"`
}

type ScrapeResult struct {
	Markdown   string       `json:"markdown"`
	Screenshot string       `json:"screenshot,omitempty"`
	Metadata   PageMetadata `json:"metadata"`
	KeySlot    int          `json:"-"`
}

type ScrapeOptions struct {
	Timeout time.Duration
	WaitFor time.Duration
}

// DefaultScrapeOptions waits a second for client rendering and gives the
// provider thirty seconds per page.
var DefaultScrapeOptions = ScrapeOptions{Timeout: 30 * time.Second, WaitFor: time.Second}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	Timeout int64    `json:"timeout"`
	WaitFor int64    `json:"waitFor"`
}

type scrapeResponse struct {
	Success bool          `json:"success"`
	Data    *ScrapeResult `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Client serializes scrapes per key and throttles each key with a token
// bucket.
type Client struct {
	baseURL    string
	pool       *KeyPool
	httpClient *http.Client
	limiters   []*rate.Limiter
	slots      []*semaphore.Weighted
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRate sets the per-key request rate.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		for i := range c.limiters {
			c.limiters[i] = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func NewClient(pool *KeyPool, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		pool:       pool,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiters:   make([]*rate.Limiter, pool.Len()),
		slots:      make([]*semaphore.Weighted, pool.Len()),
	}
	for i := range c.limiters {
		c.limiters[i] = rate.NewLimiter(rate.Limit(1), 1)
		c.slots[i] = semaphore.NewWeighted(1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scrape fetches url as Markdown plus a full-page screenshot using the key
// the tags select.
func (c *Client) Scrape(ctx context.Context, url string, tags []string, opts ScrapeOptions) (*ScrapeResult, error) {
	slot, key, err := c.pool.Select(tags)
	if err != nil {
		return nil, err
	}

	if err := c.slots[slot].Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.slots[slot].Release(1)

	if err := c.limiters[slot].Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(scrapeRequest{
		URL:     url,
		Formats: []string{"markdown", "screenshot@fullPage"},
		Timeout: opts.Timeout.Milliseconds(),
		WaitFor: opts.WaitFor.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", url, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	var parsed scrapeResponse
	_ = json.Unmarshal(bodyBytes, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.Success || parsed.Data == nil {
		msg := parsed.Error
		if msg == "" {
			msg = strings.TrimSpace(string(bodyBytes))
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	parsed.Data.KeySlot = slot
	return parsed.Data, nil
}
