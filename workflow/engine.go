package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/docqa/config"
	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/pkg/telemetry"
	"github.com/sweetpotato0/docqa/rag/reranker"
	"github.com/sweetpotato0/docqa/websearch"
)

// Retriever returns candidates for a query, ordered by descending similarity.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]reranker.Candidate, error)
}

// Engine executes one workflow variant as an explicit finite-state machine.
// Construction fixes the transition table; Run walks it for one question.
// An Engine is safe for concurrent use: every run owns its own RunState.
type Engine struct {
	name        string
	entry       Node
	transitions map[transition]Node

	client    llm.Client
	retriever Retriever
	reranker  reranker.Reranker
	searcher  websearch.Searcher

	cfg    config.Engine
	logger *slog.Logger
	tracer trace.Tracer
}

// Option customises an engine.
type Option func(*Engine)

// WithConfig replaces the engine defaults with externally supplied settings.
func WithConfig(cfg config.Engine) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger overrides the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func newEngine(name string, entry Node, transitions map[transition]Node, client llm.Client, retriever Retriever, rr reranker.Reranker, opts ...Option) *Engine {
	e := &Engine{
		name:        name,
		entry:       entry,
		transitions: transitions,
		client:      client,
		retriever:   retriever,
		reranker:    rr,
		cfg:         config.DefaultEngine(),
		logger:      logging.WithComponent("workflow." + name),
		tracer:      telemetry.Tracer("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewBasic builds the basic workflow: retrieve, rerank, generate. No grading
// and no confidence check.
func NewBasic(client llm.Client, retriever Retriever, rr reranker.Reranker, opts ...Option) *Engine {
	transitions := map[transition]Node{
		{NodeRetrieve, BranchNext}: NodeRerank,
		{NodeRerank, BranchNext}:   NodeGenerate,
		{NodeGenerate, BranchNext}: NodeEnd,
	}
	return newEngine("basic", NodeRetrieve, transitions, client, retriever, rr, opts...)
}

// NewSuggestion builds the acyclic suggestion workflow. When the corpus is
// irrelevant the run terminates with enrichment suggestions instead of an
// answer.
func NewSuggestion(client llm.Client, retriever Retriever, rr reranker.Reranker, opts ...Option) *Engine {
	transitions := map[transition]Node{
		{NodeRetrieve, BranchNext}:                NodeRerank,
		{NodeRerank, BranchNext}:                  NodeGrade,
		{NodeGrade, BranchRelevant}:               NodeGenerate,
		{NodeGrade, BranchNotRelevant}:            NodeSuggestEnrichment,
		{NodeGenerate, BranchNext}:                NodeCheckConfidence,
		{NodeCheckConfidence, BranchConfident}:    NodeEnd,
		{NodeCheckConfidence, BranchNotConfident}: NodeEnd,
		{NodeSuggestEnrichment, BranchNext}:       NodeEnd,
	}
	return newEngine("suggestion", NodeRetrieve, transitions, client, retriever, rr, opts...)
}

// NewSearch builds the cyclic search workflow. An irrelevant corpus falls back
// to web search; low-confidence answers trigger bounded query rewriting.
func NewSearch(client llm.Client, retriever Retriever, rr reranker.Reranker, searcher websearch.Searcher, opts ...Option) *Engine {
	transitions := map[transition]Node{
		{NodeRetrieve, BranchNext}:                NodeRerank,
		{NodeRerank, BranchNext}:                  NodeGrade,
		{NodeGrade, BranchRelevant}:               NodeGenerate,
		{NodeGrade, BranchNotRelevant}:            NodeWebSearch,
		{NodeWebSearch, BranchNext}:               NodeGenerate,
		{NodeWebSearch, BranchEmptyContext}:       NodeEnd,
		{NodeGenerate, BranchNext}:                NodeCheckConfidence,
		{NodeCheckConfidence, BranchConfident}:    NodeEnd,
		{NodeCheckConfidence, BranchNotConfident}: NodeQueryRewrite,
		{NodeQueryRewrite, BranchNext}:            NodeWebSearch,
	}
	e := newEngine("search", NodeRetrieve, transitions, client, retriever, rr, opts...)
	e.searcher = searcher
	return e
}

// Name returns the workflow variant name.
func (e *Engine) Name() string {
	return e.name
}

// Run executes the workflow for one question and returns its result. Node
// failures abort the run and propagate unmodified. The run honors ctx
// cancellation between nodes.
func (e *Engine) Run(ctx context.Context, question string) (*Result, error) {
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty: %w", errors.ErrInvalidInput)
	}

	ctx, span := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("workflow", e.name)))
	state := newRunState(question)
	result, err := e.run(ctx, state)
	telemetry.End(span, err)
	return result, err
}

func (e *Engine) run(ctx context.Context, state *RunState) (*Result, error) {
	node := e.entry
	started := time.Now()

	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state.Trace = append(state.Trace, node)
		branch, err := e.executeNode(ctx, node, state)
		if err != nil {
			e.logger.Error("node failed", "node", string(node), "error", err)
			return nil, err
		}
		e.logger.Debug("node executed", "node", string(node), "branch", string(branch), "iteration", state.Iteration)

		next, ok := e.transitions[transition{node, branch}]
		if !ok {
			return nil, fmt.Errorf("no transition from node %q on branch %q", node, branch)
		}

		// The iteration cap is enforced before re-entering the rewrite
		// cycle; the best answer seen so far is returned.
		if next == NodeQueryRewrite && state.Iteration >= e.cfg.MaxRewriteIterations {
			state.terminal = ReasonMaxIterations
			break
		}

		if next == NodeEnd {
			state.terminal = e.terminalReason(node, branch)
		}
		node = next
	}

	result := e.buildResult(state)
	e.logger.Info("run finished",
		"workflow", e.name,
		"reason", string(result.Reason),
		"iterations", result.Iterations,
		"duration", time.Since(started))
	return result, nil
}

func (e *Engine) terminalReason(from Node, branch Branch) TerminalReason {
	switch {
	case from == NodeWebSearch && branch == BranchEmptyContext:
		return ReasonNoInformation
	case from == NodeSuggestEnrichment:
		return ReasonNotRelevantSuggested
	default:
		return ReasonAnswered
	}
}

func (e *Engine) buildResult(state *RunState) *Result {
	result := &Result{
		Suggestions: state.Suggestions,
		MissingInfo: state.MissingInfo,
		Reason:      state.terminal,
		Iterations:  state.Iteration,
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	if result.MissingInfo == nil {
		result.MissingInfo = []string{}
	}

	switch state.terminal {
	case ReasonAnswered:
		result.Answer = state.Answer
		if e.name != "basic" {
			confidence := state.Confidence
			result.Confidence = &confidence
		}
	case ReasonMaxIterations:
		result.Answer = state.best.Answer
		confidence := state.best.Confidence
		result.Confidence = &confidence
	case ReasonNotRelevantSuggested:
		// No answer; the suggestions are the payload.
		zero := 0.0
		result.Confidence = &zero
	case ReasonNoInformation:
		// No answer and no confidence.
	}
	return result
}

// executeNode dispatches one node with a span and the per-node timeout.
func (e *Engine) executeNode(ctx context.Context, node Node, state *RunState) (Branch, error) {
	ctx, span := e.tracer.Start(ctx, "workflow."+string(node),
		trace.WithAttributes(
			attribute.String("workflow", e.name),
			attribute.Int("iteration", state.Iteration),
		))

	if e.cfg.NodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.NodeTimeout)
		defer cancel()
	}

	var branch Branch
	var err error
	switch node {
	case NodeRetrieve:
		branch, err = e.runRetrieve(ctx, state)
	case NodeRerank:
		branch, err = e.runRerank(ctx, state)
	case NodeGrade:
		branch, err = e.runGrade(ctx, state)
	case NodeGenerate:
		branch, err = e.runGenerate(ctx, state)
	case NodeCheckConfidence:
		branch, err = e.runCheckConfidence(ctx, state)
	case NodeSuggestEnrichment:
		branch, err = e.runSuggestEnrichment(ctx, state)
	case NodeWebSearch:
		branch, err = e.runWebSearch(ctx, state)
	case NodeQueryRewrite:
		branch, err = e.runQueryRewrite(ctx, state)
	default:
		err = fmt.Errorf("unknown node %q", node)
	}

	telemetry.End(span, err)
	return branch, err
}
