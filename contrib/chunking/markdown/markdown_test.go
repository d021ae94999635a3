package markdown

import (
	"context"
	"testing"

	"github.com/sweetpotato0/docqa/rag/document"
)

func TestMarkdownChunkerSplitsByHeadings(t *testing.T) {
	ch := New(WithMaxHeadingLevel(2), WithMaxCharacters(200), WithMinCharacters(0))
	doc := document.Document{
		ID: "doc-1",
		Content: `
# Returns

Items can be returned within 14 days of delivery.

## Exceptions

Perishable goods and gift cards cannot be returned.
`,
	}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata["section_title"] == "" {
		t.Fatalf("expected section metadata to be present")
	}
	if chunks[0].ID != document.ChunkID("doc-1", 0) {
		t.Errorf("chunk ID = %q, want deterministic scheme", chunks[0].ID)
	}
}

func TestMarkdownChunkerNoHeadingsFallsBack(t *testing.T) {
	ch := New()
	doc := document.Document{
		ID:      "doc-2",
		Content: "Plain prose without any headings at all.",
	}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
}

func TestMarkdownChunkerMergesShortSections(t *testing.T) {
	ch := New(WithMinCharacters(200), WithMaxCharacters(1000))
	doc := document.Document{
		ID: "doc-3",
		Content: `# A

short

# B

also short

# C

still short
`,
	}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("chunk error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want short sections merged into 1", len(chunks))
	}
}
