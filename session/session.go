// Package session tracks per-session chat history: the user questions and the
// workflow answers of one conversation.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Role of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of a conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Workflow  string    `json:"workflow,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a conversation identified by its ID.
type Session struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Append adds turns to the session, creating it if needed.
	Append(ctx context.Context, sessionID string, turns ...Turn) error

	// Get returns the session or errors.ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes a session; deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// NewID returns a fresh random session identifier.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(buf)
}
