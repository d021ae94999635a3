package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/history"
	"github.com/sweetpotato0/docqa/ingest"
	"github.com/sweetpotato0/docqa/session/store"
	"github.com/sweetpotato0/docqa/vector"
	"github.com/sweetpotato0/docqa/workflow"
)

type stubWorkflow struct {
	result *workflow.Result
	err    error
	calls  int
}

func (s *stubWorkflow) Run(ctx context.Context, question string) (*workflow.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type memoryHistory struct {
	records []*history.RunRecord
}

func (m *memoryHistory) Record(ctx context.Context, record *history.RunRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memoryHistory) Recent(ctx context.Context, limit int) ([]*history.RunRecord, error) {
	return m.records, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (fixedEmbedder) Dimension() int { return 3 }

type memoryVectorStore struct {
	added int
}

func (m *memoryVectorStore) AddEmbedding(ctx context.Context, emb *vector.Embedding) error {
	m.added++
	return nil
}

func (m *memoryVectorStore) Search(ctx context.Context, query []float32, topK int) ([]vector.SearchResult, error) {
	return nil, nil
}

func (m *memoryVectorStore) DeleteEmbedding(ctx context.Context, id string) error { return nil }

func (m *memoryVectorStore) Clear(ctx context.Context) error { return nil }

func (m *memoryVectorStore) Count(ctx context.Context) (int, error) { return m.added, nil }

func answered(answer string, confidence float64) *workflow.Result {
	return &workflow.Result{
		Answer:      answer,
		Confidence:  &confidence,
		Suggestions: []string{},
		MissingInfo: []string{},
		Reason:      workflow.ReasonAnswered,
		Iterations:  0,
	}
}

func newTestServer(t *testing.T, wf Workflow, opts ...Option) *Server {
	t.Helper()
	return New(":0", map[string]Workflow{"suggestion": wf}, nil, opts...)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestChatReturnsWorkflowResult(t *testing.T) {
	wf := &stubWorkflow{result: answered("the refund window is 14 days", 0.92)}
	srv := newTestServer(t, wf)

	w := postJSON(t, srv.Handler(), "/api/v1/chat", ChatRequest{Query: "what is the refund window?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Answer != "the refund window is 14 days" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", resp.Confidence)
	}
	if resp.Reason != "ANSWERED" {
		t.Errorf("terminal_reason = %q", resp.Reason)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session_id")
	}
	if wf.calls != 1 {
		t.Errorf("workflow calls = %d, want 1", wf.calls)
	}
}

func TestChatUnknownWorkflowIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{result: answered("x", 1)})

	w := postJSON(t, srv.Handler(), "/api/v1/chat", ChatRequest{Query: "q", Workflow: "agentic"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if !strings.Contains(resp.Error, "agentic") {
		t.Errorf("error = %q, want it to name the workflow", resp.Error)
	}
}

func TestChatWorkflowFailureIsGenericBadGateway(t *testing.T) {
	cause := errors.Transient("openai", "chat-completion", fmt.Errorf("401 invalid api key sk-abc123"))
	srv := newTestServer(t, &stubWorkflow{err: cause})

	w := postJSON(t, srv.Handler(), "/api/v1/chat", ChatRequest{Query: "q"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	// provider detail must never leak to the client
	body := w.Body.String()
	for _, secret := range []string{"openai", "sk-abc123", "401"} {
		if strings.Contains(body, secret) {
			t.Errorf("response body leaks %q: %s", secret, body)
		}
	}
}

func TestChatEmptyQueryIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{result: answered("x", 1)})

	w := postJSON(t, srv.Handler(), "/api/v1/chat", ChatRequest{Query: ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChatPersistsSessionAndHistory(t *testing.T) {
	sessions := store.NewInMemoryStore()
	runs := &memoryHistory{}
	srv := newTestServer(t, &stubWorkflow{result: answered("42", 0.8)},
		WithSessionStore(sessions), WithHistoryStore(runs))

	w := postJSON(t, srv.Handler(), "/api/v1/chat", ChatRequest{Query: "meaning of life?", SessionID: "sess-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	sess, err := sessions.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(sess.Turns))
	}
	if sess.Turns[1].Content != "42" {
		t.Errorf("assistant turn = %q", sess.Turns[1].Content)
	}

	if len(runs.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(runs.records))
	}
	if runs.records[0].Question != "meaning of life?" {
		t.Errorf("recorded question = %q", runs.records[0].Question)
	}
	if runs.records[0].Workflow != "suggestion" {
		t.Errorf("recorded workflow = %q", runs.records[0].Workflow)
	}
}

func TestChatReusesProvidedSessionID(t *testing.T) {
	sessions := store.NewInMemoryStore()
	srv := newTestServer(t, &stubWorkflow{result: answered("a", 1)}, WithSessionStore(sessions))

	for i := 0; i < 2; i++ {
		w := postJSON(t, srv.Handler(), "/api/v1/chat", ChatRequest{Query: "q", SessionID: "shared"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}

	sess, err := sessions.Get(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(sess.Turns) != 4 {
		t.Errorf("turns = %d, want 4 after two exchanges", len(sess.Turns))
	}
}

func multipartUpload(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestDocumentUploadAndListing(t *testing.T) {
	vs := &memoryVectorStore{}
	svc := ingest.NewService(vs, fixedEmbedder{})
	srv := New(":0", map[string]Workflow{"suggestion": &stubWorkflow{result: answered("x", 1)}}, svc)

	body, contentType := multipartUpload(t, "faq.md", "text/markdown", "Refunds are processed within 14 days.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var record ingest.Record
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if record.Filename != "faq.md" {
		t.Errorf("filename = %q", record.Filename)
	}
	if record.NumChunks == 0 {
		t.Error("expected at least one chunk")
	}
	if vs.added == 0 {
		t.Error("expected chunk embeddings in the vector store")
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	listW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listW, listReq)
	if listW.Code != http.StatusOK {
		t.Fatalf("list status = %d", listW.Code)
	}
	var records []ingest.Record
	if err := json.Unmarshal(listW.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal records: %v", err)
	}
	if len(records) != 1 || records[0].DocID != record.DocID {
		t.Errorf("listing = %+v, want the uploaded document", records)
	}
}

func TestDocumentUploadUnsupportedTypeIsBadRequest(t *testing.T) {
	svc := ingest.NewService(&memoryVectorStore{}, fixedEmbedder{})
	srv := New(":0", map[string]Workflow{}, svc)

	body, contentType := multipartUpload(t, "deck.pptx", "application/vnd.ms-powerpoint", "binarystuff")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestDocumentUploadMissingFileField(t *testing.T) {
	svc := ingest.NewService(&memoryVectorStore{}, fixedEmbedder{})
	srv := New(":0", map[string]Workflow{}, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(":0", map[string]Workflow{
		"suggestion": &stubWorkflow{},
		"search":     &stubWorkflow{},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Workflows) != 2 {
		t.Errorf("workflows = %v, want both registered", resp.Workflows)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}
