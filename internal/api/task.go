package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskora/taskora/internal/task"
)

// taskStore is the task persistence consumed by the REST handlers.
type taskStore interface {
	Create(ctx context.Context, userID uuid.UUID, description string) (*task.Task, error)
	Get(ctx context.Context, userID, taskID uuid.UUID) (*task.Task, error)
	List(ctx context.Context, userID uuid.UUID, completed *bool) ([]*task.Task, error)
	UpdateDescription(ctx context.Context, userID, taskID uuid.UUID, description string) (*task.Task, error)
	SetCompleted(ctx context.Context, userID, taskID uuid.UUID, completed bool) (*task.Task, error)
	Delete(ctx context.Context, userID, taskID uuid.UUID) error
}

type taskHandler struct {
	tasks  taskStore
	logger *slog.Logger
}

type createTaskRequest struct {
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Description *string `json:"description"`
	IsCompleted *bool   `json:"is_completed"`
}

type taskListResponse struct {
	Tasks []*task.Task `json:"tasks"`
	Total int          `json:"total"`
}

func (h *taskHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	t, err := h.tasks.Create(r.Context(), userID, req.Description)
	if err != nil {
		if errors.Is(err, task.ErrInvalidDescription) {
			writeError(w, http.StatusBadRequest, "invalid_description", "description must be 1-500 characters")
			return
		}
		h.logger.Error("creating task", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not create task")
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *taskHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var completed *bool
	switch r.URL.Query().Get("completed") {
	case "":
	case "true":
		v := true
		completed = &v
	case "false":
		v := false
		completed = &v
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "completed must be true or false")
		return
	}

	tasks, err := h.tasks.List(r.Context(), userID, completed)
	if err != nil {
		h.logger.Error("listing tasks", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list tasks")
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}

	writeJSON(w, http.StatusOK, taskListResponse{Tasks: tasks, Total: len(tasks)})
}

func (h *taskHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid task ID")
		return
	}

	t, err := h.tasks.Get(r.Context(), userID, taskID)
	if err != nil {
		h.writeTaskError(w, err, userID, taskID)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *taskHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid task ID")
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Description == nil && req.IsCompleted == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	var updated *task.Task
	if req.Description != nil {
		updated, err = h.tasks.UpdateDescription(r.Context(), userID, taskID, *req.Description)
		if err != nil {
			h.writeTaskError(w, err, userID, taskID)
			return
		}
	}
	if req.IsCompleted != nil {
		updated, err = h.tasks.SetCompleted(r.Context(), userID, taskID, *req.IsCompleted)
		if err != nil {
			h.writeTaskError(w, err, userID, taskID)
			return
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *taskHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid task ID")
		return
	}

	if err := h.tasks.Delete(r.Context(), userID, taskID); err != nil {
		h.writeTaskError(w, err, userID, taskID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *taskHandler) writeTaskError(w http.ResponseWriter, err error, userID, taskID uuid.UUID) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "task not found")
	case errors.Is(err, task.ErrInvalidDescription):
		writeError(w, http.StatusBadRequest, "invalid_description", "description must be 1-500 characters")
	default:
		h.logger.Error("task operation failed", "error", err, "user_id", userID, "task_id", taskID)
		writeError(w, http.StatusInternalServerError, "internal_error", "task operation failed")
	}
}
