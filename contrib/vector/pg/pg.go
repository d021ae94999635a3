package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/vector"
)

// Store implements vector.VectorStore on PostgreSQL with the pgvector
// extension. Similarity search uses cosine distance.
type Store struct {
	db        *sql.DB
	dimension int
	tableName string
}

// Config holds pgvector connection settings.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // embedding dimension (default 1536)
	TableName string // table name (default chunks)
}

// DefaultConfig returns settings for a local development database.
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "postgres",
		DBName:    "docqa",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "chunks",
	}
}

// NewStore connects to PostgreSQL and prepares the chunk table.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.Dimension <= 0 {
		config.Dimension = 1536
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Transient("pgvector", "ping", err)
	}

	store := &Store{
		db:        db,
		dimension: config.Dimension,
		tableName: config.TableName,
	}
	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to setup pgvector: %w", err)
	}
	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		text TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.tableName, s.dimension)

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// AddEmbedding upserts an embedding with its metadata.
func (s *Store) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil {
		return fmt.Errorf("embedding cannot be nil: %w", errors.ErrInvalidInput)
	}
	if embedding.ID == "" {
		return fmt.Errorf("embedding ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if len(embedding.Vector) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d: %w",
			s.dimension, len(embedding.Vector), errors.ErrInvalidInput)
	}

	metadata := embedding.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, text, embedding, metadata)
	VALUES ($1, $2, $3::vector, $4)
	ON CONFLICT (id) DO UPDATE SET
		text = EXCLUDED.text,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata,
		created_at = CURRENT_TIMESTAMP
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, embedding.ID, embedding.Text, vectorToString(embedding.Vector), metadataJSON); err != nil {
		return errors.Transient("pgvector", "add-embedding", err)
	}
	return nil
}

// Search returns the topK nearest embeddings by cosine distance, best first.
// The returned Similarity is 1 - cosine distance.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int) ([]vector.SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty: %w", errors.ErrInvalidInput)
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d: %w",
			s.dimension, len(queryVector), errors.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 10
	}

	op := vector.CosineDistanceOperator()
	query := fmt.Sprintf(`
	SELECT id, text, embedding, metadata, 1 - (embedding %s $1::vector) AS similarity
	FROM %s
	ORDER BY embedding %s $1::vector
	LIMIT $2
	`, op, s.tableName, op)

	rows, err := s.db.QueryContext(ctx, query, vectorToString(queryVector), topK)
	if err != nil {
		return nil, errors.Transient("pgvector", "search", err)
	}
	defer rows.Close()

	results := make([]vector.SearchResult, 0, topK)
	for rows.Next() {
		var id, text, vectorStr string
		var metadataJSON []byte
		var similarity float64

		if err := rows.Scan(&id, &text, &vectorStr, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		vec, err := stringToVector(vectorStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vector for embedding %s: %w", id, err)
		}

		var metadata map[string]any
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for embedding %s: %w", id, err)
			}
		}

		results = append(results, vector.SearchResult{
			Embedding: &vector.Embedding{
				ID:       id,
				Text:     text,
				Vector:   vec,
				Metadata: metadata,
			},
			Similarity: float32(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}
	return results, nil
}

// DeleteEmbedding removes an embedding by ID.
func (s *Store) DeleteEmbedding(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Transient("pgvector", "delete-embedding", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("embedding %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

// Clear removes all embeddings.
func (s *Store) Clear(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s", s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Transient("pgvector", "clear", err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableName)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, errors.Transient("pgvector", "count", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func stringToVector(str string) ([]float32, error) {
	str = strings.TrimPrefix(str, "[")
	str = strings.TrimSuffix(str, "]")
	parts := strings.Split(str, ",")

	vec := make([]float32, 0, len(parts))
	for i, part := range parts {
		var v float32
		n, err := fmt.Sscanf(strings.TrimSpace(part), "%f", &v)
		if err != nil || n != 1 {
			return nil, fmt.Errorf("failed to parse vector component at index %d: %q", i, part)
		}
		vec = append(vec, v)
	}
	return vec, nil
}
