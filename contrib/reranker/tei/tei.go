// Package tei scores query/document pairs through a HuggingFace
// text-embeddings-inference rerank endpoint.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweetpotato0/docqa/errors"
)

// Client implements reranker.Model against a TEI /rerank endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option customises the TEI client.
type Option func(*Client)

// WithHTTPClient swaps the HTTP client (useful for timeouts or proxies).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a TEI cross-encoder client. endpoint is the base URL of the
// serving instance, e.g. http://localhost:8081.
func New(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// ScorePairs implements reranker.Model. The returned slice is positional:
// scores[i] belongs to docs[i] regardless of the order TEI returns them in.
func (c *Client) ScorePairs(ctx context.Context, query string, docs []string) ([]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", errors.ErrInvalidInput)
	}

	payload := rerankRequest{Query: query, Texts: docs}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Transient("tei", "rerank", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("rerank failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, errors.Transient("tei", "rerank", cause)
		}
		return nil, cause
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errors.Transient("tei", "rerank", err)
	}

	scores := make([]float32, len(docs))
	seen := make([]bool, len(docs))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(docs) {
			continue
		}
		scores[res.Index] = res.Score
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, errors.Transient("tei", "rerank",
				fmt.Errorf("no score returned for document %d", i))
		}
	}
	return scores, nil
}
