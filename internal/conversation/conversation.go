// Package conversation persists chat conversations, their messages, and
// the tool invocation audit trail.
//
// All reads and writes are scoped by owner. A conversation that exists
// but belongs to another user is reported as ErrNotFound so callers
// cannot distinguish it from one that never existed.
package conversation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates no conversation is visible to the caller under
// the given identifier.
var ErrNotFound = errors.New("conversation not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tool invocation statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Conversation is one chat thread owned by a user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MessageCount is populated by List only.
	MessageCount int `json:"message_count,omitempty"`
}

// Message is one turn in a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"-"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// Invocations are the tool calls recorded against this message.
	// Populated for assistant messages when loading a full conversation.
	Invocations []ToolInvocation `json:"tool_invocations,omitempty"`
}

// ToolInvocation is the audit record of one tool execution.
type ToolInvocation struct {
	ID         uuid.UUID       `json:"id"`
	MessageID  uuid.UUID       `json:"-"`
	ToolName   string          `json:"tool_name"`
	Arguments  json.RawMessage `json:"arguments"`
	Result     json.RawMessage `json:"result,omitempty"`
	Status     string          `json:"status"`
	DurationMS int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// NormalizeListLimit clamps a requested page size to the supported range.
// Non-positive values fall back to the default.
func NormalizeListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
