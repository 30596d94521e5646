package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/taskora/taskora/internal/conversation"
)

// conversationStore is the conversation persistence consumed by the
// read-side handlers.
type conversationStore interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]conversation.Conversation, error)
	Count(ctx context.Context, userID uuid.UUID) (int, error)
	Get(ctx context.Context, userID, conversationID uuid.UUID) (*conversation.Conversation, []conversation.Message, error)
	Delete(ctx context.Context, userID, conversationID uuid.UUID) error
}

type conversationHandler struct {
	conversations conversationStore
	logger        *slog.Logger
}

type conversationListResponse struct {
	Conversations []conversation.Conversation `json:"conversations"`
	Total         int                         `json:"total"`
}

type conversationDetailResponse struct {
	*conversation.Conversation
	Messages []conversation.Message `json:"messages"`
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		limit = parsed
	}

	conversations, err := h.conversations.List(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("listing conversations", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list conversations")
		return
	}
	if conversations == nil {
		conversations = []conversation.Conversation{}
	}

	total, err := h.conversations.Count(r.Context(), userID)
	if err != nil {
		h.logger.Error("counting conversations", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list conversations")
		return
	}

	writeJSON(w, http.StatusOK, conversationListResponse{Conversations: conversations, Total: total})
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid conversation ID")
		return
	}

	conv, messages, err := h.conversations.Get(r.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Conversation not found")
			return
		}
		h.logger.Error("loading conversation", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load conversation")
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}

	writeJSON(w, http.StatusOK, conversationDetailResponse{Conversation: conv, Messages: messages})
}

func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid conversation ID")
		return
	}

	if err := h.conversations.Delete(r.Context(), userID, conversationID); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Conversation not found")
			return
		}
		h.logger.Error("deleting conversation", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
