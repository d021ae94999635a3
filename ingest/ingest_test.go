package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/docqa/contrib/vector/inmemory"
	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/rag/document"
)

type fixedEmbedder struct {
	calls int
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int { return 3 }

// charTokens approximates one token per character, enough to exercise the
// budget guard deterministically.
type charTokens struct{}

func (charTokens) Count(text string) (int, error) { return len(text), nil }

func (charTokens) Truncate(text string, maxTokens int) (string, error) {
	if len(text) <= maxTokens {
		return text, nil
	}
	return text[:maxTokens], nil
}

func TestIndexDocumentStoresChunks(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	svc := NewService(store, &fixedEmbedder{})

	up := Upload{
		Filename:    "policy.txt",
		ContentType: "text/plain",
		Data:        []byte("Refunds are issued within 14 days.\n\nShipping takes 3 to 5 business days."),
	}
	record, err := svc.IndexDocument(ctx, up)
	if err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}
	if record.NumChunks == 0 {
		t.Fatal("expected chunks")
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != record.NumChunks {
		t.Errorf("store count = %d, want %d", count, record.NumChunks)
	}

	emb, err := store.GetEmbedding(ctx, record.DocID+"_chunk_0")
	if err != nil {
		t.Fatalf("first chunk not stored under deterministic ID: %v", err)
	}
	if emb.Metadata["filename"] != "policy.txt" {
		t.Errorf("chunk metadata filename = %v", emb.Metadata["filename"])
	}
	if emb.Metadata["document_id"] != record.DocID {
		t.Errorf("chunk metadata document_id = %v, want %s", emb.Metadata["document_id"], record.DocID)
	}
}

func TestDocIDIsDeterministic(t *testing.T) {
	a := DocID("policy.txt", []byte("content"))
	b := DocID("policy.txt", []byte("content"))
	if a != b {
		t.Errorf("DocID not deterministic: %s vs %s", a, b)
	}
	if DocID("other.txt", []byte("content")) == a {
		t.Error("different filenames must produce different IDs")
	}
	if DocID("policy.txt", []byte("changed")) == a {
		t.Error("different content must produce different IDs")
	}

	parts := strings.SplitN(a, "_", 2)
	if len(parts) != 2 || len(parts[0]) != 8 || len(parts[1]) != 16 {
		t.Errorf("unexpected DocID shape: %s", a)
	}
}

func TestIndexDocumentRejectsEmptyFile(t *testing.T) {
	svc := NewService(inmemory.NewStore(), &fixedEmbedder{})
	_, err := svc.IndexDocument(context.Background(), Upload{Filename: "empty.txt"})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIndexDocumentRejectsUnsupportedType(t *testing.T) {
	svc := NewService(inmemory.NewStore(), &fixedEmbedder{})
	_, err := svc.IndexDocument(context.Background(), Upload{
		Filename: "slides.pptx",
		Data:     []byte("binary"),
	})
	if !errors.Is(err, errors.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestIndexDocumentRejectsTextFreeHTML(t *testing.T) {
	svc := NewService(inmemory.NewStore(), &fixedEmbedder{})
	_, err := svc.IndexDocument(context.Background(), Upload{
		Filename: "blank.html",
		Data:     []byte("<html><body><div></div></body></html>"),
	})
	if !errors.Is(err, errors.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestIndexDocumentExtractsHTML(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	svc := NewService(store, &fixedEmbedder{})

	record, err := svc.IndexDocument(ctx, Upload{
		Filename:    "faq.html",
		ContentType: "text/html",
		Data:        []byte("<html><body><h1>FAQ</h1><p>Refunds take 14 days.</p></body></html>"),
	})
	if err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}

	emb, err := store.GetEmbedding(ctx, record.DocID+"_chunk_0")
	if err != nil {
		t.Fatalf("GetEmbedding error: %v", err)
	}
	if !strings.Contains(emb.Text, "FAQ") {
		t.Errorf("heading missing from extracted text: %q", emb.Text)
	}
}

func TestTokenBudgetTruncatesOversizedChunks(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	svc := NewService(store, &fixedEmbedder{}, WithTokenBudget(charTokens{}, 20))

	record, err := svc.IndexDocument(ctx, Upload{
		Filename: "long.txt",
		Data:     []byte("this single paragraph is clearly longer than twenty characters"),
	})
	if err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}

	emb, err := store.GetEmbedding(ctx, record.DocID+"_chunk_0")
	if err != nil {
		t.Fatalf("GetEmbedding error: %v", err)
	}
	if len(emb.Text) > 20 {
		t.Errorf("chunk not truncated to budget: %d chars", len(emb.Text))
	}
}

func TestDocumentsListsIndexed(t *testing.T) {
	ctx := context.Background()
	svc := NewService(inmemory.NewStore(), &fixedEmbedder{})

	if got := svc.Documents(); len(got) != 0 {
		t.Fatalf("expected empty listing, got %d", len(got))
	}

	if _, err := svc.IndexDocument(ctx, Upload{Filename: "a.txt", Data: []byte("alpha text")}); err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}
	if _, err := svc.IndexDocument(ctx, Upload{Filename: "b.txt", Data: []byte("beta text")}); err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}

	docs := svc.Documents()
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

type markerChunker struct {
	calls int
}

func (m *markerChunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	m.calls++
	return []document.Chunk{{
		ID:         document.ChunkID(doc.ID, 0),
		DocumentID: doc.ID,
		Content:    doc.Content,
	}}, nil
}

func TestMarkdownUploadsUseMarkdownChunker(t *testing.T) {
	ctx := context.Background()
	md := &markerChunker{}
	svc := NewService(inmemory.NewStore(), &fixedEmbedder{}, WithMarkdownChunker(md))

	if _, err := svc.IndexDocument(ctx, Upload{Filename: "notes.md", Data: []byte("# Title\n\nbody")}); err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}
	if md.calls != 1 {
		t.Fatalf("markdown chunker calls = %d, want 1", md.calls)
	}

	if _, err := svc.IndexDocument(ctx, Upload{Filename: "notes.txt", Data: []byte("plain body")}); err != nil {
		t.Fatalf("IndexDocument error: %v", err)
	}
	if md.calls != 1 {
		t.Fatalf("markdown chunker must not handle plain text, calls = %d", md.calls)
	}
}
