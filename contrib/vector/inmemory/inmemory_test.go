package inmemory

import (
	"context"
	"testing"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/vector"
)

func TestStore(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	t.Run("add and retrieve embedding", func(t *testing.T) {
		emb := &vector.Embedding{
			ID:     "emb1",
			Text:   "hello world",
			Vector: []float32{0.1, 0.2, 0.3},
			Metadata: map[string]any{
				"document_id": "doc1",
			},
		}

		if err := store.AddEmbedding(ctx, emb); err != nil {
			t.Errorf("AddEmbedding failed: %v", err)
		}

		retrieved, err := store.GetEmbedding(ctx, "emb1")
		if err != nil {
			t.Errorf("GetEmbedding failed: %v", err)
		}
		if retrieved.Text != emb.Text {
			t.Errorf("Expected text %q, got %q", emb.Text, retrieved.Text)
		}
		if retrieved.Metadata["document_id"] != "doc1" {
			t.Errorf("Expected metadata to survive round trip, got %v", retrieved.Metadata)
		}
	})

	t.Run("search returns scored results ordered best first", func(t *testing.T) {
		store.Clear(ctx)

		embeddings := []*vector.Embedding{
			{ID: "emb1", Text: "apple", Vector: []float32{1.0, 0.0, 0.0}},
			{ID: "emb2", Text: "banana", Vector: []float32{0.0, 1.0, 0.0}},
			{ID: "emb3", Text: "orange", Vector: []float32{0.0, 0.0, 1.0}},
		}
		for _, emb := range embeddings {
			store.AddEmbedding(ctx, emb)
		}

		results, err := store.Search(ctx, []float32{1.0, 0.0, 0.0}, 2)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		if results[0].Embedding.ID != "emb1" {
			t.Errorf("Expected first result to be emb1, got %s", results[0].Embedding.ID)
		}
		if results[0].Similarity < results[1].Similarity {
			t.Errorf("Expected non-increasing similarity, got %f then %f",
				results[0].Similarity, results[1].Similarity)
		}
	})

	t.Run("search on empty store", func(t *testing.T) {
		store.Clear(ctx)

		results, err := store.Search(ctx, []float32{1.0, 0.0, 0.0}, 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Expected no results, got %d", len(results))
		}
	})

	t.Run("delete embedding", func(t *testing.T) {
		store.Clear(ctx)

		store.AddEmbedding(ctx, &vector.Embedding{
			ID:     "del1",
			Text:   "to delete",
			Vector: []float32{0.5, 0.5, 0.5},
		})

		if err := store.DeleteEmbedding(ctx, "del1"); err != nil {
			t.Errorf("DeleteEmbedding failed: %v", err)
		}
		if _, err := store.GetEmbedding(ctx, "del1"); !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteEmbedding(ctx, "del1"); !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on double delete, got %v", err)
		}
	})

	t.Run("count embeddings", func(t *testing.T) {
		store.Clear(ctx)

		count, err := store.Count(ctx)
		if err != nil {
			t.Errorf("Count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected count 0, got %d", count)
		}

		store.AddEmbedding(ctx, &vector.Embedding{
			ID:     "cnt1",
			Text:   "count me",
			Vector: []float32{0.1, 0.2, 0.3},
		})

		count, err = store.Count(ctx)
		if err != nil {
			t.Errorf("Count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected count 1, got %d", count)
		}
	})

	t.Run("rejects invalid embeddings", func(t *testing.T) {
		if err := store.AddEmbedding(ctx, nil); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for nil embedding, got %v", err)
		}
		if err := store.AddEmbedding(ctx, &vector.Embedding{Vector: []float32{1}}); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for missing ID, got %v", err)
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1.0, 0.0, 0.0}
	b := []float32{1.0, 0.0, 0.0}
	c := []float32{0.0, 1.0, 0.0}

	if sim := vector.CosineSimilarity(a, b); sim < 0.999 {
		t.Errorf("Expected similarity ~1.0 for identical vectors, got %f", sim)
	}
	if sim := vector.CosineSimilarity(a, c); sim != 0.0 {
		t.Errorf("Expected similarity 0.0 for orthogonal vectors, got %f", sim)
	}
}
