package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/rag/reranker"
	"github.com/sweetpotato0/docqa/websearch"
)

type gradeResponse struct {
	Relevant  string `json:"relevant"`
	Rationale string `json:"rationale"`
}

type confidenceResponse struct {
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions"`
	MissingInfo []string `json:"missing_info"`
}

type suggestionResponse struct {
	Suggestions []string `json:"suggestions"`
	MissingInfo []string `json:"missing_info"`
}

type rewriteResponse struct {
	Query string `json:"query"`
}

func (e *Engine) runRetrieve(ctx context.Context, state *RunState) (Branch, error) {
	candidates, err := e.retriever.Retrieve(ctx, state.Question, e.cfg.RetrievalTopK)
	if err != nil {
		return "", err
	}
	state.Candidates = candidates
	return BranchNext, nil
}

func (e *Engine) runRerank(ctx context.Context, state *RunState) (Branch, error) {
	results, err := e.reranker.Rerank(ctx, state.Question, state.Candidates)
	if err != nil {
		return "", err
	}
	state.Reranked = results
	state.Context = joinChunks(results)
	return BranchNext, nil
}

func (e *Engine) runGrade(ctx context.Context, state *RunState) (Branch, error) {
	// An empty reranked set is graded irrelevant without a model call.
	if len(state.Reranked) == 0 {
		state.Verdict = VerdictNotRelevant
		state.Rationale = "no documents retrieved"
		return BranchNotRelevant, nil
	}

	user, err := renderPrompt(graderUserTmpl, promptData{
		Context:  state.Context,
		Question: state.Question,
	})
	if err != nil {
		return "", err
	}

	resp, err := llm.GenerateStructured[gradeResponse](ctx, e.client, string(NodeGrade), graderSystem, user,
		func(r *gradeResponse) error {
			if r.Relevant != string(VerdictRelevant) && r.Relevant != string(VerdictNotRelevant) {
				return fmt.Errorf("relevant must be %q or %q, got %q", VerdictRelevant, VerdictNotRelevant, r.Relevant)
			}
			return nil
		})
	if err != nil {
		return "", err
	}

	state.Verdict = Verdict(resp.Relevant)
	state.Rationale = resp.Rationale
	if state.Verdict == VerdictRelevant {
		return BranchRelevant, nil
	}
	return BranchNotRelevant, nil
}

func (e *Engine) runGenerate(ctx context.Context, state *RunState) (Branch, error) {
	user, err := renderPrompt(generatorUserTmpl, promptData{
		Context:  state.Context,
		Question: state.Question,
	})
	if err != nil {
		return "", err
	}

	answer, err := llm.GenerateText(ctx, e.client, generatorSystem, user)
	if err != nil {
		return "", err
	}
	state.Answer = answer
	state.AnswerContext = state.Context
	return BranchNext, nil
}

func (e *Engine) runCheckConfidence(ctx context.Context, state *RunState) (Branch, error) {
	user, err := renderPrompt(confidenceUserTmpl, promptData{
		Context:  state.AnswerContext,
		Question: state.Question,
		Answer:   state.Answer,
	})
	if err != nil {
		return "", err
	}

	resp, err := llm.GenerateStructured[confidenceResponse](ctx, e.client, string(NodeCheckConfidence), confidenceSystem, user,
		func(r *confidenceResponse) error {
			if r.Confidence < 0 || r.Confidence > 1 {
				return fmt.Errorf("confidence %v outside [0, 1]", r.Confidence)
			}
			return nil
		})
	if err != nil {
		return "", err
	}

	state.Confidence = resp.Confidence
	state.addSuggestions(resp.Suggestions, resp.MissingInfo)
	state.best.record(state.Answer, resp.Confidence)

	if resp.Confidence >= e.cfg.ConfidenceThreshold {
		return BranchConfident, nil
	}
	return BranchNotConfident, nil
}

func (e *Engine) runSuggestEnrichment(ctx context.Context, state *RunState) (Branch, error) {
	user, err := renderPrompt(suggesterUserTmpl, promptData{Question: state.Question})
	if err != nil {
		return "", err
	}

	resp, err := llm.GenerateStructured[suggestionResponse](ctx, e.client, string(NodeSuggestEnrichment), suggesterSystem, user)
	if err != nil {
		return "", err
	}

	state.addSuggestions(resp.Suggestions, resp.MissingInfo)
	state.Confidence = 0
	return BranchNext, nil
}

func (e *Engine) runWebSearch(ctx context.Context, state *RunState) (Branch, error) {
	if e.searcher == nil {
		return "", fmt.Errorf("web searcher is not configured")
	}

	results, err := e.searcher.Search(ctx, state.Question, e.cfg.WebSearchResults)
	if err != nil {
		return "", err
	}

	joined := websearch.JoinResults(results)
	if joined == "" {
		return BranchEmptyContext, nil
	}
	state.Context = joined
	return BranchNext, nil
}

func (e *Engine) runQueryRewrite(ctx context.Context, state *RunState) (Branch, error) {
	user, err := renderPrompt(rewriterUserTmpl, promptData{
		Question:    state.Question,
		Suggestions: strings.Join(state.Suggestions, "\n"),
		MissingInfo: strings.Join(state.MissingInfo, "\n"),
	})
	if err != nil {
		return "", err
	}

	current := state.Question
	resp, err := llm.GenerateStructured[rewriteResponse](ctx, e.client, string(NodeQueryRewrite), rewriterSystem, user,
		func(r *rewriteResponse) error {
			query := strings.TrimSpace(r.Query)
			if query == "" {
				return fmt.Errorf("rewritten query is empty")
			}
			if query == current {
				return fmt.Errorf("rewritten query is unchanged")
			}
			return nil
		})
	if err != nil {
		return "", err
	}

	state.Question = strings.TrimSpace(resp.Query)
	state.History = append(state.History, state.Question)
	state.Iteration++
	return BranchNext, nil
}

func joinChunks(results []reranker.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		content := strings.TrimSpace(r.Chunk.Content)
		if content == "" {
			continue
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n\n")
}
