package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sweetpotato0/docqa/errors"
)

const defaultTavilyEndpoint = "https://api.tavily.com/search"

// TavilyClient implements Searcher against the Tavily search API.
type TavilyClient struct {
	apiKey     string
	endpoint   string
	depth      string
	httpClient *http.Client
}

// TavilyOption customises the Tavily client.
type TavilyOption func(*TavilyClient)

// WithEndpoint overrides the Tavily API endpoint.
func WithEndpoint(endpoint string) TavilyOption {
	return func(c *TavilyClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithSearchDepth sets the Tavily search depth ("basic" or "advanced").
func WithSearchDepth(depth string) TavilyOption {
	return func(c *TavilyClient) {
		if depth != "" {
			c.depth = depth
		}
	}
}

// WithHTTPClient swaps the HTTP client (useful for timeouts or proxies).
func WithHTTPClient(client *http.Client) TavilyOption {
	return func(c *TavilyClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewTavilyClient creates a Tavily-backed web searcher.
func NewTavilyClient(apiKey string, opts ...TavilyOption) *TavilyClient {
	client := &TavilyClient{
		apiKey:     apiKey,
		endpoint:   defaultTavilyEndpoint,
		depth:      "basic",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float32 `json:"score"`
	} `json:"results"`
}

// Search implements the Searcher interface. Network failures, timeouts and
// throttling surface as transient provider errors.
func (c *TavilyClient) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty: %w", errors.ErrInvalidInput)
	}
	if numResults <= 0 {
		numResults = 3
	}

	payload := tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: c.depth,
		MaxResults:  numResults,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Transient("tavily", "search", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, errors.Transient("tavily", "search", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("tavily search failed: status %d", resp.StatusCode)
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("tavily search: decode response: %w", err)
	}

	results := make([]Result, 0, len(tr.Results))
	for _, r := range tr.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}
