package retriever

import (
	"context"
	"strings"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/rag/document"
	"github.com/sweetpotato0/docqa/rag/reranker"
	"github.com/sweetpotato0/docqa/vector"
)

// Retriever answers semantic similarity queries against the vector store.
// It is read-only: ingestion writes chunks, the retriever only searches them.
type Retriever struct {
	store    vector.VectorStore
	embedder vector.Embedder
}

// New creates a retriever over the given store and embedder.
func New(store vector.VectorStore, embedder vector.Embedder) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
	}
}

// Retrieve embeds the query and returns up to k candidates ordered by
// descending similarity. An empty result is a valid outcome, not a failure;
// an unreachable store or embedder surfaces as a transient provider error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]reranker.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrInvalidInput
	}
	if k <= 0 {
		return nil, errors.ErrInvalidInput
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Transient("embedder", "embed-query", err)
	}

	hits, err := r.store.Search(ctx, queryVec, k)
	if err != nil {
		return nil, errors.Transient("vector-store", "search", err)
	}

	candidates := make([]reranker.Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Embedding == nil {
			continue
		}
		candidates = append(candidates, reranker.Candidate{
			Chunk:      chunkFromEmbedding(hit.Embedding),
			Similarity: hit.Similarity,
		})
	}
	return candidates, nil
}

// chunkFromEmbedding rebuilds a transient chunk copy from a stored embedding.
func chunkFromEmbedding(emb *vector.Embedding) document.Chunk {
	chunk := document.Chunk{
		ID:      emb.ID,
		Content: emb.Text,
	}
	if emb.Metadata != nil {
		chunk.Metadata = make(map[string]any, len(emb.Metadata))
		for k, v := range emb.Metadata {
			chunk.Metadata[k] = v
		}
		if docID, ok := emb.Metadata["document_id"].(string); ok {
			chunk.DocumentID = docID
		}
		if ordinal, ok := emb.Metadata["chunk_index"].(int); ok {
			chunk.Ordinal = ordinal
		}
	}
	return chunk
}
