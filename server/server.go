// Package server exposes the question answering workflows over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/history"
	"github.com/sweetpotato0/docqa/ingest"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/session"
	"github.com/sweetpotato0/docqa/session/store"
	"github.com/sweetpotato0/docqa/workflow"
)

// maxUploadBytes caps document uploads at 16 MiB.
const maxUploadBytes = 16 << 20

// Workflow is the part of a workflow engine the server needs.
type Workflow interface {
	Run(ctx context.Context, question string) (*workflow.Result, error)
}

// Server routes HTTP requests to workflows and the ingestion service.
type Server struct {
	workflows map[string]Workflow
	ingest    *ingest.Service
	sessions  session.Store
	runs      history.Store
	logger    *slog.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithSessionStore sets the conversation store. Defaults to in-memory.
func WithSessionStore(store session.Store) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithHistoryStore sets the run audit sink. Defaults to a no-op store.
func WithHistoryStore(store history.Store) Option {
	return func(s *Server) {
		s.runs = store
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// API request/response models.
type (
	// ChatRequest asks a question through one of the workflows.
	ChatRequest struct {
		Query     string `json:"query"`
		Workflow  string `json:"workflow,omitempty"`
		SessionID string `json:"session_id,omitempty"`
	}

	// ChatResponse carries the outcome of a workflow run.
	ChatResponse struct {
		SessionID   string   `json:"session_id"`
		Answer      string   `json:"answer"`
		Confidence  *float64 `json:"confidence"`
		Suggestions []string `json:"suggestions"`
		MissingInfo []string `json:"missing_info"`
		Reason      string   `json:"terminal_reason"`
		Iterations  int      `json:"iterations"`
		DurationMS  int64    `json:"duration_ms"`
	}

	// HealthResponse reports service liveness.
	HealthResponse struct {
		Status    string   `json:"status"`
		Timestamp string   `json:"timestamp"`
		Workflows []string `json:"workflows"`
	}

	// ErrorResponse is the generic error body. It never carries provider
	// or backend detail.
	ErrorResponse struct {
		Error      string `json:"error"`
		StatusCode int    `json:"status_code"`
	}
)

// New creates a Server serving the given workflows on addr.
func New(addr string, workflows map[string]Workflow, ingestService *ingest.Service, opts ...Option) *Server {
	s := &Server{
		workflows: workflows,
		ingest:    ingestService,
		runs:      history.NopStore{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = store.NewInMemoryStore()
	}
	if s.logger == nil {
		s.logger = logging.WithComponent("server")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", s.handleChat)
	mux.HandleFunc("/api/v1/documents", s.handleDocuments)
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving requests until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	name := req.Workflow
	if name == "" {
		name = "suggestion"
	}
	wf, ok := s.workflows[name]
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown workflow %q", name))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}

	start := time.Now()
	result, err := wf.Run(r.Context(), req.Query)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("workflow run failed",
			"workflow", name,
			"session_id", sessionID,
			"error", err)
		s.writeError(w, http.StatusBadGateway, "workflow execution failed")
		return
	}

	s.recordRun(r.Context(), sessionID, name, req.Query, result, duration)

	s.writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:   sessionID,
		Answer:      result.Answer,
		Confidence:  result.Confidence,
		Suggestions: result.Suggestions,
		MissingInfo: result.MissingInfo,
		Reason:      string(result.Reason),
		Iterations:  result.Iterations,
		DurationMS:  duration.Milliseconds(),
	})
}

// recordRun persists the conversation turns and the audit record. Failures
// are logged but never surfaced to the caller; the answer already exists.
func (s *Server) recordRun(ctx context.Context, sessionID, name, query string, result *workflow.Result, duration time.Duration) {
	err := s.sessions.Append(ctx, sessionID,
		session.Turn{Role: session.RoleUser, Content: query, CreatedAt: time.Now().UTC()},
		session.Turn{
			Role:      session.RoleAssistant,
			Content:   result.Answer,
			Workflow:  name,
			Reason:    string(result.Reason),
			CreatedAt: time.Now().UTC(),
		},
	)
	if err != nil {
		s.logger.Warn("failed to persist session turns", "session_id", sessionID, "error", err)
	}

	if err := s.runs.Record(ctx, history.FromResult(sessionID, name, query, result, duration)); err != nil {
		s.logger.Warn("failed to record run history", "session_id", sessionID, "error", err)
	}
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.uploadDocument(w, r)
	case http.MethodGet:
		s.listDocuments(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		s.writeError(w, http.StatusNotFound, "document ingestion is not enabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	record, err := s.ingest.IndexDocument(r.Context(), ingest.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrInvalidInput),
			errors.Is(err, errors.ErrUnsupportedType),
			errors.Is(err, errors.ErrEmptyDocument):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("document indexing failed", "filename", header.Filename, "error", err)
			s.writeError(w, http.StatusBadGateway, "document indexing failed")
		}
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		s.writeJSON(w, http.StatusOK, []ingest.Record{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.ingest.Documents())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	names := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		names = append(names, name)
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Workflows: names,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:      message,
		StatusCode: status,
	})
}
