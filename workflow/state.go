// Package workflow implements the question answering engine: three
// finite-state workflows (basic, suggestion, search) over retrieval,
// grading, generation, confidence scoring and web-search fallback.
package workflow

import (
	"github.com/sweetpotato0/docqa/rag/reranker"
)

// Node identifies a workflow step.
type Node string

const (
	NodeRetrieve          Node = "retrieve"
	NodeRerank            Node = "rerank"
	NodeGrade             Node = "grade"
	NodeGenerate          Node = "generate"
	NodeCheckConfidence   Node = "check_confidence"
	NodeSuggestEnrichment Node = "suggest_enrichment"
	NodeWebSearch         Node = "web_search"
	NodeQueryRewrite      Node = "query_rewrite"
	NodeEnd               Node = "end"
)

// Branch is the outcome a node reports to the engine for routing.
type Branch string

const (
	BranchNext         Branch = "next"
	BranchRelevant     Branch = "relevant"
	BranchNotRelevant  Branch = "not_relevant"
	BranchConfident    Branch = "confident"
	BranchNotConfident Branch = "not_confident"
	BranchEmptyContext Branch = "empty_context"
)

// transition keys the routing table.
type transition struct {
	From Node
	On   Branch
}

// Verdict is the relevance grader's decision.
type Verdict string

const (
	VerdictRelevant    Verdict = "yes"
	VerdictNotRelevant Verdict = "no"
)

// TerminalReason explains why a run ended.
type TerminalReason string

const (
	ReasonAnswered             TerminalReason = "ANSWERED"
	ReasonNotRelevantSuggested TerminalReason = "NOT_RELEVANT_SUGGESTED"
	ReasonMaxIterations        TerminalReason = "MAX_ITERATIONS_REACHED"
	ReasonNoInformation        TerminalReason = "NO_INFORMATION_AVAILABLE"
)

// bestAnswer tracks the highest-confidence answer seen across iterations.
type bestAnswer struct {
	Answer     string
	Confidence float64
	set        bool
}

func (b *bestAnswer) record(answer string, confidence float64) {
	if !b.set || confidence > b.Confidence {
		b.Answer = answer
		b.Confidence = confidence
		b.set = true
	}
}

// RunState is the mutable aggregate threaded through one run. It is owned by
// exactly one run and never shared across concurrent runs.
type RunState struct {
	// Question is the current query; rewrites replace it and retain the
	// previous value in History.
	Question string
	// History holds every query of the run, the original at index 0.
	History []string

	Candidates []reranker.Candidate
	Reranked   []reranker.Result
	// Context is the text the next generate call will be conditioned on,
	// either joined reranked chunks or joined web results.
	Context string

	Verdict   Verdict
	Rationale string

	Answer string
	// AnswerContext is the context the current Answer was conditioned on.
	AnswerContext string
	Confidence    float64

	// Suggestions and MissingInfo accumulate across iterations, deduplicated
	// and order-preserving.
	Suggestions []string
	MissingInfo []string

	// Iteration counts executed query rewrites; it only grows and is the
	// sole loop-termination mechanism.
	Iteration int

	best bestAnswer

	// Trace records executed nodes in order.
	Trace []Node

	terminal TerminalReason
}

func newRunState(question string) *RunState {
	return &RunState{
		Question: question,
		History:  []string{question},
	}
}

func (s *RunState) addSuggestions(suggestions, missingInfo []string) {
	s.Suggestions = appendUnique(s.Suggestions, suggestions)
	s.MissingInfo = appendUnique(s.MissingInfo, missingInfo)
}

func appendUnique(dst []string, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// Result is the outcome of a completed run.
type Result struct {
	// Answer is empty when the run produced none.
	Answer string `json:"answer"`
	// Confidence is nil when no answer was evaluated.
	Confidence  *float64       `json:"confidence"`
	Suggestions []string       `json:"suggestions"`
	MissingInfo []string       `json:"missing_info"`
	Reason      TerminalReason `json:"terminal_reason"`
	// Iterations is how many query rewrites the run performed.
	Iterations int `json:"iterations"`
}
