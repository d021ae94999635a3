package reranker

import (
	"context"
	"fmt"
	"sort"

	"github.com/sweetpotato0/docqa/rag/document"
)

// Candidate is a retrieved chunk with its vector-store similarity score.
type Candidate struct {
	Chunk      document.Chunk
	Similarity float32
}

// Result is a chunk with its cross-encoder relevance score. A reranked set is
// ordered by non-increasing Score.
type Result struct {
	Chunk document.Chunk
	Score float32
}

// Model scores (query, document) pairs jointly. Implementations wrap a
// cross-encoder serving endpoint; scores must be comparable within one call.
type Model interface {
	ScorePairs(ctx context.Context, query string, docs []string) ([]float32, error)
}

// Reranker reorders retrieval candidates by joint query/document relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error)
}

// CrossEncoder reranks candidates through a cross-encoder Model and keeps the
// topN best. Deterministic given fixed model outputs.
type CrossEncoder struct {
	model Model
	topN  int
}

// Option customises the cross-encoder reranker.
type Option func(*CrossEncoder)

// WithTopN caps how many results survive reranking (default 3).
func WithTopN(n int) Option {
	return func(c *CrossEncoder) {
		if n > 0 {
			c.topN = n
		}
	}
}

// NewCrossEncoder creates a reranker backed by the given scoring model.
func NewCrossEncoder(model Model, opts ...Option) *CrossEncoder {
	c := &CrossEncoder{
		model: model,
		topN:  3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rerank implements the Reranker interface. An empty candidate set returns
// empty immediately; the scoring model is never invoked on zero pairs.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if c.model == nil {
		return nil, fmt.Errorf("rerank model is not configured")
	}

	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = cand.Chunk.Content
	}

	scores, err := c.model.ScorePairs(ctx, query, docs)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("rerank model returned %d scores for %d candidates", len(scores), len(candidates))
	}

	results := make([]Result, len(candidates))
	for i, cand := range candidates {
		results[i] = Result{
			Chunk: cand.Chunk.Clone(),
			Score: scores[i],
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if c.topN > 0 && len(results) > c.topN {
		results = results[:c.topN]
	}
	return results, nil
}
