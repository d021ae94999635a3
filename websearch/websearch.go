// Package websearch provides external web search used when the private
// corpus cannot answer a question.
package websearch

import (
	"context"
	"strings"
)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Score   float32 `json:"score,omitempty"`
}

// Searcher performs a web search and returns the top results. An empty
// result set is a valid outcome, not an error.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) ([]Result, error)
}

// JoinResults concatenates result contents into a single context block,
// skipping empty snippets. Returns "" when nothing usable was found.
func JoinResults(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n\n")
}
