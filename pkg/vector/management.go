package vector

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

const DefaultManagementURL = "https://api.upstash.com"

// CreateIndexRequest mirrors the provider's index creation payload.
type CreateIndexRequest struct {
	Name                 string `json:"name"`
	Region               string `json:"region"`
	SimilarityFunction   string `json:"similarity_function"`
	DimensionCount       int    `json:"dimension_count"`
	Type                 string `json:"type,omitempty"`
	EmbeddingModel       string `json:"embedding_model,omitempty"`
	IndexType            string `json:"index_type,omitempty"`
	SparseEmbeddingModel string `json:"sparse_embedding_model,omitempty"`
}

// DefaultCreateIndexRequest is a hybrid index with server-side embeddings.
func DefaultCreateIndexRequest(name string) CreateIndexRequest {
	return CreateIndexRequest{
		Name:                 name,
		Region:               "us-east-1",
		SimilarityFunction:   "COSINE",
		DimensionCount:       1024,
		Type:                 "payg",
		EmbeddingModel:       "BGE_M3",
		IndexType:            "HYBRID",
		SparseEmbeddingModel: "BM25",
	}
}

// ManagementClient talks to the provider's account-level API.
type ManagementClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewManagementClient(baseURL, apiKey string, httpClient *http.Client) *ManagementClient {
	if baseURL == "" {
		baseURL = DefaultManagementURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ManagementClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *ManagementClient) GetIndex(ctx context.Context, indexID string) (*IndexConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v2/vector/index/%s", c.baseURL, indexID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "get index")
}

func (c *ManagementClient) CreateIndex(ctx context.Context, body CreateIndexRequest) (*IndexConfig, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/vector/index", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "create index")
}

func (c *ManagementClient) do(req *http.Request, op string) (*IndexConfig, error) {
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector provider %s: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &VectorProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var cfg IndexConfig
	if err := json.Unmarshal(bodyBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	if cfg.ID == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("vector provider %s: incomplete index config", op)
	}
	return &cfg, nil
}
