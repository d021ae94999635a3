// Package history records completed workflow runs for auditing.
package history

import (
	"context"
	"time"

	"github.com/sweetpotato0/docqa/workflow"
)

// RunRecord is the audit entry of one completed run.
type RunRecord struct {
	ID          string    `json:"id" bson:"_id"`
	SessionID   string    `json:"session_id" bson:"session_id"`
	Workflow    string    `json:"workflow" bson:"workflow"`
	Question    string    `json:"question" bson:"question"`
	Answer      string    `json:"answer" bson:"answer"`
	Confidence  *float64  `json:"confidence" bson:"confidence,omitempty"`
	Suggestions []string  `json:"suggestions" bson:"suggestions"`
	MissingInfo []string  `json:"missing_info" bson:"missing_info"`
	Reason      string    `json:"terminal_reason" bson:"terminal_reason"`
	Iterations  int       `json:"iterations" bson:"iterations"`
	Duration    int64     `json:"duration_ms" bson:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Store is an append-only sink of run records.
type Store interface {
	// Record appends one run record.
	Record(ctx context.Context, record *RunRecord) error

	// Recent returns the latest records, newest first.
	Recent(ctx context.Context, limit int) ([]*RunRecord, error)
}

// FromResult builds a run record from a finished workflow result.
func FromResult(sessionID, workflowName, question string, result *workflow.Result, duration time.Duration) *RunRecord {
	return &RunRecord{
		SessionID:   sessionID,
		Workflow:    workflowName,
		Question:    question,
		Answer:      result.Answer,
		Confidence:  result.Confidence,
		Suggestions: result.Suggestions,
		MissingInfo: result.MissingInfo,
		Reason:      string(result.Reason),
		Iterations:  result.Iterations,
		Duration:    duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
}

// NopStore discards records; used when auditing is disabled.
type NopStore struct{}

func (NopStore) Record(ctx context.Context, record *RunRecord) error { return nil }

func (NopStore) Recent(ctx context.Context, limit int) ([]*RunRecord, error) { return nil, nil }
