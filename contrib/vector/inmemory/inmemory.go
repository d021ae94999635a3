package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/vector"
)

// Store implements vector.VectorStore with in-process storage. It is intended
// for tests and single-node deployments where persistence is not required.
type Store struct {
	embeddings map[string]*vector.Embedding
	mu         sync.RWMutex
}

// NewStore creates an empty in-memory vector store.
func NewStore() *Store {
	return &Store{
		embeddings: make(map[string]*vector.Embedding),
	}
}

// AddEmbedding adds or replaces an embedding in the store.
func (s *Store) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil {
		return fmt.Errorf("embedding cannot be nil: %w", errors.ErrInvalidInput)
	}
	if embedding.ID == "" {
		return fmt.Errorf("embedding ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("embedding vector cannot be empty: %w", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[embedding.ID] = embedding.Clone()
	return nil
}

// Search returns the topK embeddings closest to the query vector by cosine
// similarity, ordered best first. Embeddings with a different dimension than
// the query are skipped.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int) ([]vector.SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty: %w", errors.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]vector.SearchResult, 0, len(s.embeddings))
	for _, emb := range s.embeddings {
		if len(emb.Vector) != len(queryVector) {
			continue
		}
		results = append(results, vector.SearchResult{
			Embedding:  emb.Clone(),
			Similarity: vector.CosineSimilarity(queryVector, emb.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteEmbedding removes an embedding by ID.
func (s *Store) DeleteEmbedding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.embeddings[id]; !exists {
		return fmt.Errorf("embedding %s: %w", id, errors.ErrNotFound)
	}
	delete(s.embeddings, id)
	return nil
}

// GetEmbedding retrieves a specific embedding by ID.
func (s *Store) GetEmbedding(ctx context.Context, id string) (*vector.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, exists := s.embeddings[id]
	if !exists {
		return nil, fmt.Errorf("embedding %s: %w", id, errors.ErrNotFound)
	}
	return emb.Clone(), nil
}

// Clear removes all embeddings.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.embeddings = make(map[string]*vector.Embedding)
	return nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.embeddings), nil
}
