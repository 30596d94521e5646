package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/taskora/taskora/internal/chat"
	"github.com/taskora/taskora/internal/conversation"
)

// maxChatMessageLength caps the user message in characters.
const maxChatMessageLength = 2000

// chatAgent runs one agent turn.
type chatAgent interface {
	Execute(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, message string) (*chat.Result, error)
}

type chatHandler struct {
	agent   chatAgent
	limiter *chatRateLimiter
	logger  *slog.Logger
}

type chatRequest struct {
	Message        string     `json:"message"`
	ConversationID *uuid.UUID `json:"conversation_id"`
}

// toolCallRecord mirrors one audited tool execution in the response.
type toolCallRecord struct {
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
	Result     json.RawMessage `json:"result"`
}

type chatResponse struct {
	ConversationID uuid.UUID        `json:"conversation_id"`
	Message        string           `json:"message"`
	ToolCalls      []toolCallRecord `json:"tool_calls"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Message cannot be empty")
		return
	}
	if utf8.RuneCountInString(message) > maxChatMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "Message too long (max 2000 characters)")
		return
	}

	if !h.limiter.allow(userID) {
		h.logger.Warn("chat rate limit exceeded", "user_id", userID)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited",
			"Rate limit exceeded. Please wait a moment before sending more messages.")
		return
	}

	result, err := h.agent.Execute(r.Context(), userID, req.ConversationID, message)
	if err != nil {
		var cerr *chat.Error
		switch {
		case errors.Is(err, conversation.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Conversation not found")
		case errors.As(err, &cerr):
			writeError(w, http.StatusServiceUnavailable, "agent_unavailable", cerr.Message)
		default:
			h.logger.Error("chat processing failed", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "internal_error",
				"A database error occurred. Please try again.")
		}
		return
	}

	toolCalls := make([]toolCallRecord, 0, len(result.Invocations))
	for _, inv := range result.Invocations {
		toolCalls = append(toolCalls, toolCallRecord{
			ToolName:   inv.ToolName,
			Parameters: inv.Arguments,
			Result:     inv.Result,
		})
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: result.ConversationID,
		Message:        result.Reply,
		ToolCalls:      toolCalls,
	})
}
