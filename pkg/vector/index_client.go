package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Record is one chunk pushed to an index. Data is embedded server side.
type Record struct {
	ID       string                 `json:"id"`
	Data     string                 `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type QueryRequest struct {
	Data            string `json:"data"`
	TopK            int    `json:"topK"`
	IncludeMetadata bool   `json:"includeMetadata"`
	IncludeData     bool   `json:"includeData"`
	Filter          string `json:"filter,omitempty"`
}

type QueryResult struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Data     string                 `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IndexClient is bound to one index endpoint and token.
type IndexClient struct {
	ID         string
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewIndexClient(cfg *IndexConfig, httpClient *http.Client) *IndexClient {
	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IndexClient{
		ID:         cfg.ID,
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

func (c *IndexClient) Endpoint() string { return c.endpoint }

func (c *IndexClient) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	return c.post(ctx, "upsert-data", records, nil)
}

func (c *IndexClient) Query(ctx context.Context, q QueryRequest) ([]QueryResult, error) {
	if q.TopK <= 0 {
		q.TopK = 10
	}
	var out []QueryResult
	if err := c.post(ctx, "query-data", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IndexClient) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vector %s: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &VectorProviderError{Op: path, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	if result == nil {
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error,omitempty"`
	}
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if envelope.Error != "" {
		return fmt.Errorf("vector %s: %s", path, envelope.Error)
	}
	return json.Unmarshal(envelope.Result, result)
}
