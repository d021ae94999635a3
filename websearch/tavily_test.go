package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sweetpotato0/docqa/errors"
)

func TestTavilySearch(t *testing.T) {
	var gotReq tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(tavilyResponse{
			Results: []struct {
				Title   string  `json:"title"`
				URL     string  `json:"url"`
				Content string  `json:"content"`
				Score   float32 `json:"score"`
			}{
				{Title: "Refund rules", URL: "https://example.com/a", Content: "Refunds take 14 days.", Score: 0.9},
				{Title: "Empty hit", URL: "https://example.com/b", Content: "   "},
			},
		})
	}))
	defer srv.Close()

	client := NewTavilyClient("key", WithEndpoint(srv.URL))
	results, err := client.Search(context.Background(), "refund policy", 0)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if gotReq.MaxResults != 3 {
		t.Errorf("expected default max_results 3, got %d", gotReq.MaxResults)
	}
	if gotReq.Query != "refund policy" {
		t.Errorf("unexpected query: %q", gotReq.Query)
	}

	joined := JoinResults(results)
	if joined != "Refunds take 14 days." {
		t.Errorf("JoinResults should skip blank snippets, got %q", joined)
	}
}

func TestTavilyThrottlingIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewTavilyClient("key", WithEndpoint(srv.URL))
	_, err := client.Search(context.Background(), "anything", 3)
	if !errors.IsTransient(err) {
		t.Fatalf("expected transient error on 429, got %v", err)
	}
}

func TestTavilyClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewTavilyClient("bad-key", WithEndpoint(srv.URL))
	_, err := client.Search(context.Background(), "anything", 3)
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if errors.IsTransient(err) {
		t.Fatalf("401 must not be transient: %v", err)
	}
}

func TestTavilyRejectsEmptyQuery(t *testing.T) {
	client := NewTavilyClient("key")
	if _, err := client.Search(context.Background(), "", 3); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
