package chunking

import (
	"context"
	"strings"

	"github.com/sweetpotato0/docqa/rag/document"
)

// Chunker splits documents into chunks that can be embedded and indexed.
type Chunker interface {
	Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error)
}

type Options struct {
	ChunkSize   int
	Overlap     int
	Separator   string
	IncludeMeta bool
}

// SimpleChunker splits documents by separator and enforces max character
// lengths with overlap between consecutive windows.
type SimpleChunker struct {
	size    int
	overlap int
	sep     string
	addMeta bool
}

// Option customizes the simple chunker.
type Option func(*Options)

// WithChunkSize overrides the default chunk size (characters).
func WithChunkSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ChunkSize = size
		}
	}
}

// WithOverlap configures overlap (characters) between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(o *Options) {
		if overlap >= 0 {
			o.Overlap = overlap
		}
	}
}

// WithSeparator sets the logical separator used before windowing.
func WithSeparator(sep string) Option {
	return func(o *Options) {
		if sep != "" {
			o.Separator = sep
		}
	}
}

// WithMetadataCopy toggles whether document metadata should be copied to chunks.
func WithMetadataCopy(enabled bool) Option {
	return func(o *Options) {
		o.IncludeMeta = enabled
	}
}

// NewSimpleChunker constructs a chunker with the defaults the ingest service
// has always used: 1000-character windows with 200 characters of overlap.
func NewSimpleChunker(opts ...Option) *SimpleChunker {
	cfg := &Options{
		ChunkSize:   1000,
		Overlap:     200,
		Separator:   "\n\n",
		IncludeMeta: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &SimpleChunker{
		size:    cfg.ChunkSize,
		overlap: cfg.Overlap,
		sep:     cfg.Separator,
		addMeta: cfg.IncludeMeta,
	}
}

// Chunk splits the document into bounded pieces. Chunk IDs are deterministic
// per document so re-ingesting the same file upserts in place.
func (c *SimpleChunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	parts := strings.Split(doc.Content, c.sep)
	chunks := make([]document.Chunk, 0, len(parts))
	ordinal := 0

	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		for len(part) > c.size {
			window := part[:c.size]
			part = part[c.size-c.overlap:]
			chunks = append(chunks, c.newChunk(doc, ordinal, window))
			ordinal++
		}
		chunks = append(chunks, c.newChunk(doc, ordinal, part))
		ordinal++
	}

	if len(chunks) == 0 {
		chunks = append(chunks, c.newChunk(doc, 0, doc.Content))
	}

	return chunks, nil
}

func (c *SimpleChunker) newChunk(doc document.Document, ordinal int, content string) document.Chunk {
	chunk := document.Chunk{
		ID:         document.ChunkID(doc.ID, ordinal),
		DocumentID: doc.ID,
		Content:    strings.TrimSpace(content),
		Ordinal:    ordinal,
	}
	if c.addMeta && doc.Metadata != nil {
		chunk.Metadata = make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			chunk.Metadata[k] = v
		}
		chunk.Metadata["chunk_index"] = ordinal
	}
	return chunk
}
