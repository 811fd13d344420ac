package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultHTTPBaseURL = "https://blob.vercel-storage.com"

// HTTPStore talks to a Vercel Blob compatible API.
type HTTPStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPStore(baseURL, token string, httpClient *http.Client) *HTTPStore {
	if baseURL == "" {
		baseURL = DefaultHTTPBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (s *HTTPStore) Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (*PutResult, error) {
	clean, err := cleanPathname(pathname)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/"+clean, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("x-api-version", "7")
	access := opts.Access
	if access == "" {
		access = AccessPublic
	}
	req.Header.Set("x-vercel-blob-access", string(access))
	if opts.ContentType != "" {
		req.Header.Set("x-content-type", opts.ContentType)
	}
	if opts.AddRandomSuffix {
		req.Header.Set("x-add-random-suffix", "1")
	} else {
		req.Header.Set("x-add-random-suffix", "0")
		req.Header.Set("x-allow-overwrite", "1")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob put %s: %w", clean, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("blob put %s failed (status %d): %s", clean, resp.StatusCode, string(respBody))
	}

	var out PutResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode blob response: %w", err)
	}
	if out.ContentType == "" {
		out.ContentType = opts.ContentType
	}
	out.Size = int64(len(body))
	return &out, nil
}

func (s *HTTPStore) Get(ctx context.Context, url string) ([]byte, error) {
	return httpGet(ctx, s.httpClient, url)
}

func httpGet(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("blob get %s failed (status %d)", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
