// Package ingest indexes uploaded documents: parse, clean, chunk, embed and
// upsert into the vector store.
package ingest

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/rag/chunking"
	"github.com/sweetpotato0/docqa/rag/document"
	"github.com/sweetpotato0/docqa/rag/preprocess"
	"github.com/sweetpotato0/docqa/vector"
)

// TokenCounter measures and bounds chunk sizes in model tokens.
type TokenCounter interface {
	Count(text string) (int, error)
	Truncate(text string, maxTokens int) (string, error)
}

// Upload is one file submitted for indexing.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Record describes an indexed document.
type Record struct {
	DocID       string    `json:"doc_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	NumChunks   int       `json:"num_chunks"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// Service turns uploads into embedded chunks in the vector store.
type Service struct {
	store     vector.VectorStore
	embedder  vector.Embedder
	chunker   chunking.Chunker
	mdChunker chunking.Chunker

	tokens      TokenCounter
	tokenBudget int

	logger *slog.Logger

	mu   sync.RWMutex
	docs map[string]Record
}

// Option customises the ingest service.
type Option func(*Service)

// WithChunker replaces the default chunker.
func WithChunker(c chunking.Chunker) Option {
	return func(s *Service) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithMarkdownChunker sets a dedicated chunker for markdown uploads, letting
// heading structure drive chunk boundaries instead of fixed windows.
func WithMarkdownChunker(c chunking.Chunker) Option {
	return func(s *Service) {
		if c != nil {
			s.mdChunker = c
		}
	}
}

// WithTokenBudget enforces a per-chunk token cap; oversized chunks are
// truncated to the budget.
func WithTokenBudget(counter TokenCounter, maxTokens int) Option {
	return func(s *Service) {
		if counter != nil && maxTokens > 0 {
			s.tokens = counter
			s.tokenBudget = maxTokens
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an ingest service over the given store and embedder.
func NewService(store vector.VectorStore, embedder vector.Embedder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		embedder: embedder,
		chunker:  chunking.NewSimpleChunker(),
		logger:   logging.WithComponent("ingest"),
		docs:     make(map[string]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocID derives the stable document identifier from filename and content.
// Identical (filename, content) pairs always produce the same ID.
func DocID(filename string, content []byte) string {
	filenameHash := fmt.Sprintf("%x", md5.Sum([]byte(filename)))[:8]
	contentHash := fmt.Sprintf("%x", sha256.Sum256(content))[:16]
	return filenameHash + "_" + contentHash
}

// IndexDocument validates, cleans, chunks, embeds and stores one upload.
// Re-uploading the same file upserts its chunks in place.
func (s *Service) IndexDocument(ctx context.Context, up Upload) (*Record, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("empty file %q: %w", up.Filename, errors.ErrInvalidInput)
	}

	text, err := extractText(up)
	if err != nil {
		return nil, err
	}
	text = preprocess.Preprocess(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", up.Filename, errors.ErrEmptyDocument)
	}

	docID := DocID(up.Filename, up.Data)
	doc := document.Document{
		ID:      docID,
		Title:   up.Filename,
		Content: text,
		Metadata: map[string]any{
			"document_id":  docID,
			"filename":     up.Filename,
			"content_type": up.ContentType,
			"size":         len(up.Data),
		},
	}

	chunker := s.chunker
	if s.mdChunker != nil && fileKind(up) == "markdown" {
		chunker = s.mdChunker
	}
	chunks, err := chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", up.Filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", up.Filename, errors.ErrEmptyDocument)
	}

	if err := s.enforceTokenBudget(chunks); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errors.Transient("embedder", "embed-batch", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, c := range chunks {
		if err := s.store.AddEmbedding(ctx, &vector.Embedding{
			ID:       c.ID,
			Vector:   vectors[i],
			Text:     c.Content,
			Metadata: c.Metadata,
		}); err != nil {
			return nil, errors.Transient("vector-store", "add-embedding", err)
		}
	}

	record := Record{
		DocID:       docID,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        len(up.Data),
		NumChunks:   len(chunks),
		IndexedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.docs[docID] = record
	s.mu.Unlock()

	s.logger.Info("document indexed", "doc_id", docID, "filename", up.Filename, "chunks", len(chunks))
	return &record, nil
}

// Documents lists indexed documents, newest first.
func (s *Service) Documents() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.docs))
	for _, r := range s.docs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IndexedAt.After(out[j].IndexedAt)
	})
	return out
}

func (s *Service) enforceTokenBudget(chunks []document.Chunk) error {
	if s.tokens == nil {
		return nil
	}
	for i := range chunks {
		count, err := s.tokens.Count(chunks[i].Content)
		if err != nil {
			return fmt.Errorf("count tokens: %w", err)
		}
		if count <= s.tokenBudget {
			continue
		}
		truncated, err := s.tokens.Truncate(chunks[i].Content, s.tokenBudget)
		if err != nil {
			return fmt.Errorf("truncate chunk %s: %w", chunks[i].ID, err)
		}
		s.logger.Warn("chunk exceeds token budget, truncating",
			"chunk", chunks[i].ID, "tokens", count, "budget", s.tokenBudget)
		chunks[i].Content = truncated
	}
	return nil
}

func extractText(up Upload) (string, error) {
	switch fileKind(up) {
	case "html":
		text, err := preprocess.HTMLToText(string(up.Data))
		if err != nil {
			return "", fmt.Errorf("parse html %s: %w", up.Filename, err)
		}
		return text, nil
	case "text", "markdown":
		return string(up.Data), nil
	default:
		return "", fmt.Errorf("%s: %w", up.Filename, errors.ErrUnsupportedType)
	}
}

func fileKind(up Upload) string {
	switch strings.ToLower(filepath.Ext(up.Filename)) {
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown":
		return "markdown"
	case ".txt":
		return "text"
	}
	ct := strings.ToLower(up.ContentType)
	switch {
	case strings.Contains(ct, "html"):
		return "html"
	case strings.Contains(ct, "markdown"):
		return "markdown"
	case strings.Contains(ct, "text"):
		return "text"
	}
	return ""
}
