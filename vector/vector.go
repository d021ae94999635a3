package vector

import (
	"context"
	"math"
)

// Embedding represents a stored vector with its source text.
type Embedding struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// Clone returns a deep copy of the embedding.
func (e *Embedding) Clone() *Embedding {
	if e == nil {
		return nil
	}
	out := &Embedding{
		ID:   e.ID,
		Text: e.Text,
	}
	if e.Vector != nil {
		out.Vector = make([]float32, len(e.Vector))
		copy(out.Vector, e.Vector)
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SearchResult pairs a stored embedding with its similarity to the query
// vector. Scores are comparable across calls against the same store.
type SearchResult struct {
	Embedding  *Embedding
	Similarity float32
}

// VectorStore defines the interface for vector storage and similarity search
type VectorStore interface {
	// AddEmbedding adds or replaces an embedding in the store
	AddEmbedding(ctx context.Context, embedding *Embedding) error

	// Search finds the topK embeddings most similar to the query vector,
	// ordered by descending similarity. An empty result is not an error.
	Search(ctx context.Context, queryVector []float32, topK int) ([]SearchResult, error)

	// DeleteEmbedding removes an embedding by ID
	DeleteEmbedding(ctx context.Context, id string) error

	// Clear removes all embeddings
	Clear(ctx context.Context) error

	// Count returns the number of embeddings
	Count(ctx context.Context) (int, error)
}

// Embedder defines the interface for creating embeddings from text
type Embedder interface {
	// Embed converts text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the number of embedding dimensions
	Dimension() int
}

// CosineDistanceOperator returns the pgvector operator used for similarity search.
func CosineDistanceOperator() string {
	return "<=>"
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB))+1e-8)
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
