// Package tools exposes the fixed catalog of task operations to the
// language model and records an audit trail of every execution.
//
// Tool handlers report domain failures as values in their result, never
// as Go errors: the model reads the failure and explains it to the user.
// A Go error escapes a handler only for infrastructure problems the
// model cannot act on.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/taskora/taskora/internal/log"
	"github.com/taskora/taskora/internal/task"
)

// TaskStore is the owner-scoped task persistence consumed by the tools.
type TaskStore interface {
	Create(ctx context.Context, userID uuid.UUID, description string) (*task.Task, error)
	Get(ctx context.Context, userID, taskID uuid.UUID) (*task.Task, error)
	List(ctx context.Context, userID uuid.UUID, completed *bool) ([]*task.Task, error)
	UpdateDescription(ctx context.Context, userID, taskID uuid.UUID, description string) (*task.Task, error)
	SetCompleted(ctx context.Context, userID, taskID uuid.UUID, completed bool) (*task.Task, error)
	Delete(ctx context.Context, userID, taskID uuid.UUID) error
	DeleteCompleted(ctx context.Context, userID uuid.UUID) ([]*task.Task, error)
}

// Kit bundles the five task tools around one store.
type Kit struct {
	tasks  TaskStore
	logger *slog.Logger
}

// NewKit creates a tool kit backed by the given store.
func NewKit(tasks TaskStore, logger *slog.Logger) *Kit {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Kit{tasks: tasks, logger: logger}
}

// TaskView is the task shape returned to the model.
type TaskView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IsCompleted bool   `json:"is_completed"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Candidate identifies one task in an ambiguous match response.
type Candidate struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// AddTodoInput defines input for the add_todo tool.
type AddTodoInput struct {
	Description string `json:"description" jsonschema_description:"The task description (1-500 characters)"`
}

// AddTodoResult is the add_todo outcome.
type AddTodoResult struct {
	Success bool      `json:"success"`
	Task    *TaskView `json:"task,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// ListTodosInput defines input for the list_todos tool.
type ListTodosInput struct {
	IncludeCompleted *bool `json:"include_completed,omitempty" jsonschema_description:"Whether to include completed tasks (default: true)"`
}

// ListTodosResult is the list_todos outcome. The counts always cover
// the caller's full task set, even when the listing is filtered.
type ListTodosResult struct {
	Success        bool       `json:"success"`
	Tasks          []TaskView `json:"tasks,omitempty"`
	Total          int        `json:"total"`
	CompletedCount int        `json:"completed_count"`
	PendingCount   int        `json:"pending_count"`
	Error          string     `json:"error,omitempty"`
}

// CompleteTodoInput defines input for the complete_todo tool.
type CompleteTodoInput struct {
	TaskID           string `json:"task_id,omitempty" jsonschema_description:"Specific task UUID"`
	DescriptionMatch string `json:"description_match,omitempty" jsonschema_description:"Phrase to fuzzy match against task descriptions"`
}

// CompleteTodoResult is the complete_todo outcome.
type CompleteTodoResult struct {
	Success bool        `json:"success"`
	Task    *TaskView   `json:"task,omitempty"`
	Note    string      `json:"note,omitempty"`
	Error   string      `json:"error,omitempty"`
	Found   *bool       `json:"found,omitempty"`
	Matches []Candidate `json:"matches,omitempty"`
}

// UpdateTodoInput defines input for the update_todo tool.
type UpdateTodoInput struct {
	NewDescription   string `json:"new_description" jsonschema_description:"The new task description"`
	TaskID           string `json:"task_id,omitempty" jsonschema_description:"Specific task UUID"`
	DescriptionMatch string `json:"description_match,omitempty" jsonschema_description:"Phrase to fuzzy match against the current description"`
}

// UpdateTodoResult is the update_todo outcome.
type UpdateTodoResult struct {
	Success             bool        `json:"success"`
	Task                *TaskView   `json:"task,omitempty"`
	PreviousDescription string      `json:"previous_description,omitempty"`
	Error               string      `json:"error,omitempty"`
	Found               *bool       `json:"found,omitempty"`
	Matches             []Candidate `json:"matches,omitempty"`
}

// DeleteTodoInput defines input for the delete_todo tool.
type DeleteTodoInput struct {
	TaskID           string `json:"task_id,omitempty" jsonschema_description:"Specific task UUID"`
	DescriptionMatch string `json:"description_match,omitempty" jsonschema_description:"Phrase to fuzzy match against task descriptions"`
	DeleteCompleted  bool   `json:"delete_completed,omitempty" jsonschema_description:"Delete all completed tasks instead of a single one (default: false)"`
}

// DeleteTodoResult is the delete_todo outcome.
type DeleteTodoResult struct {
	Success      bool        `json:"success"`
	Deleted      *Candidate  `json:"deleted,omitempty"`
	DeletedCount *int        `json:"deleted_count,omitempty"`
	DeletedTasks []Candidate `json:"deleted_tasks,omitempty"`
	Note         string      `json:"note,omitempty"`
	Error        string      `json:"error,omitempty"`
	Found        *bool       `json:"found,omitempty"`
	Matches      []Candidate `json:"matches,omitempty"`
}

// User-facing failure messages returned in tool results.
const (
	msgSelectorRequired   = "Either task_id or description_match is required"
	msgInvalidTaskID      = "Invalid task ID format"
	msgNoMatch            = "No task found matching your request"
	msgAmbiguousMatch     = "Multiple tasks match. Please be more specific."
	msgDescriptionMissing = "Description is required"
	msgDescriptionTooLong = "Description too long (max 500 characters)"
	msgAlreadyCompleted   = "Task was already completed"
)

func falsePtr() *bool {
	f := false
	return &f
}

func viewOf(t *task.Task, withCreated, withUpdated bool) *TaskView {
	v := &TaskView{
		ID:          t.ID.String(),
		Description: t.Description,
		IsCompleted: t.IsCompleted,
	}
	if withCreated {
		v.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	if withUpdated {
		v.UpdatedAt = t.UpdatedAt.Format(time.RFC3339)
	}
	return v
}

// lookupFailure carries the result fields of a failed task resolution.
type lookupFailure struct {
	message string
	found   *bool
	matches []Candidate
}

// resolveTask locates a single task by explicit ID or fuzzy phrase. An
// explicit ID wins when both are given. A failure to resolve is a
// domain outcome; err is reserved for store failures.
func (k *Kit) resolveTask(ctx context.Context, userID uuid.UUID, taskID, match string) (*task.Task, *lookupFailure, error) {
	if taskID != "" {
		id, err := uuid.Parse(taskID)
		if err != nil {
			return nil, &lookupFailure{message: msgInvalidTaskID}, nil
		}
		t, err := k.tasks.Get(ctx, userID, id)
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				return nil, &lookupFailure{message: msgNoMatch, found: falsePtr()}, nil
			}
			return nil, nil, err
		}
		return t, nil, nil
	}

	all, err := k.tasks.List(ctx, userID, nil)
	if err != nil {
		return nil, nil, err
	}
	matches := task.MatchTasks(all, match)
	switch {
	case len(matches) == 0:
		return nil, &lookupFailure{message: msgNoMatch, found: falsePtr()}, nil
	case len(matches) > 1:
		candidates := make([]Candidate, 0, task.MaxMatches)
		for _, m := range matches {
			if len(candidates) == task.MaxMatches {
				break
			}
			candidates = append(candidates, Candidate{ID: m.Task.ID.String(), Description: m.Task.Description})
		}
		return nil, &lookupFailure{message: msgAmbiguousMatch, matches: candidates}, nil
	}
	return matches[0].Task, nil, nil
}

func validateToolDescription(description string) (string, string) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", msgDescriptionMissing
	}
	if utf8.RuneCountInString(description) > task.MaxDescriptionLength {
		return "", msgDescriptionTooLong
	}
	return description, ""
}

func (k *Kit) caller(tctx *ai.ToolContext) (context.Context, uuid.UUID, error) {
	ctx := tctx.Context
	userID, ok := CallerFromContext(ctx)
	if !ok {
		return nil, uuid.Nil, fmt.Errorf("tool context missing caller identity")
	}
	return ctx, userID, nil
}

// AddTodo creates a new task for the caller.
func (k *Kit) AddTodo(tctx *ai.ToolContext, input AddTodoInput) (AddTodoResult, error) {
	ctx, userID, err := k.caller(tctx)
	if err != nil {
		return AddTodoResult{}, err
	}

	description, msg := validateToolDescription(input.Description)
	if msg != "" {
		return AddTodoResult{Error: msg}, nil
	}

	t, err := k.tasks.Create(ctx, userID, description)
	if err != nil {
		k.logger.Error("add_todo failed", "error", err, "user_id", userID)
		return AddTodoResult{Error: "Failed to create task"}, nil
	}

	return AddTodoResult{Success: true, Task: viewOf(t, true, false)}, nil
}

// ListTodos returns the caller's tasks, newest first, with counts over
// the full set.
func (k *Kit) ListTodos(tctx *ai.ToolContext, input ListTodosInput) (ListTodosResult, error) {
	ctx, userID, err := k.caller(tctx)
	if err != nil {
		return ListTodosResult{}, err
	}

	includeCompleted := true
	if input.IncludeCompleted != nil {
		includeCompleted = *input.IncludeCompleted
	}

	all, err := k.tasks.List(ctx, userID, nil)
	if err != nil {
		k.logger.Error("list_todos failed", "error", err, "user_id", userID)
		return ListTodosResult{Error: "Failed to retrieve tasks"}, nil
	}

	completedCount := 0
	views := make([]TaskView, 0, len(all))
	for _, t := range all {
		if t.IsCompleted {
			completedCount++
		}
		if !includeCompleted && t.IsCompleted {
			continue
		}
		views = append(views, *viewOf(t, true, false))
	}

	return ListTodosResult{
		Success:        true,
		Tasks:          views,
		Total:          len(all),
		CompletedCount: completedCount,
		PendingCount:   len(all) - completedCount,
	}, nil
}

// CompleteTodo marks a task completed. Completing an already completed
// task succeeds with a note.
func (k *Kit) CompleteTodo(tctx *ai.ToolContext, input CompleteTodoInput) (CompleteTodoResult, error) {
	ctx, userID, err := k.caller(tctx)
	if err != nil {
		return CompleteTodoResult{}, err
	}

	if input.TaskID == "" && input.DescriptionMatch == "" {
		return CompleteTodoResult{Error: msgSelectorRequired}, nil
	}

	t, failure, err := k.resolveTask(ctx, userID, input.TaskID, input.DescriptionMatch)
	if err != nil {
		k.logger.Error("complete_todo failed", "error", err, "user_id", userID)
		return CompleteTodoResult{Error: "Failed to complete task"}, nil
	}
	if failure != nil {
		return CompleteTodoResult{Error: failure.message, Found: failure.found, Matches: failure.matches}, nil
	}

	alreadyCompleted := t.IsCompleted

	updated, err := k.tasks.SetCompleted(ctx, userID, t.ID, true)
	if err != nil {
		k.logger.Error("complete_todo failed", "error", err, "user_id", userID, "task_id", t.ID)
		return CompleteTodoResult{Error: "Failed to complete task"}, nil
	}

	result := CompleteTodoResult{Success: true, Task: viewOf(updated, false, true)}
	if alreadyCompleted {
		result.Note = msgAlreadyCompleted
	}
	return result, nil
}

// UpdateTodo rewrites a task's description.
func (k *Kit) UpdateTodo(tctx *ai.ToolContext, input UpdateTodoInput) (UpdateTodoResult, error) {
	ctx, userID, err := k.caller(tctx)
	if err != nil {
		return UpdateTodoResult{}, err
	}

	if input.TaskID == "" && input.DescriptionMatch == "" {
		return UpdateTodoResult{Error: msgSelectorRequired}, nil
	}

	newDescription, msg := validateToolDescription(input.NewDescription)
	if msg != "" {
		if msg == msgDescriptionMissing {
			msg = "New description is required"
		}
		return UpdateTodoResult{Error: msg}, nil
	}

	t, failure, err := k.resolveTask(ctx, userID, input.TaskID, input.DescriptionMatch)
	if err != nil {
		k.logger.Error("update_todo failed", "error", err, "user_id", userID)
		return UpdateTodoResult{Error: "Failed to update task"}, nil
	}
	if failure != nil {
		return UpdateTodoResult{Error: failure.message, Found: failure.found, Matches: failure.matches}, nil
	}

	previous := t.Description

	updated, err := k.tasks.UpdateDescription(ctx, userID, t.ID, newDescription)
	if err != nil {
		k.logger.Error("update_todo failed", "error", err, "user_id", userID, "task_id", t.ID)
		return UpdateTodoResult{Error: "Failed to update task"}, nil
	}

	return UpdateTodoResult{
		Success:             true,
		Task:                viewOf(updated, false, true),
		PreviousDescription: previous,
	}, nil
}

// DeleteTodo removes one task, or every completed task when
// delete_completed is set. Bulk deletion with nothing to delete is a
// success with a zero count.
func (k *Kit) DeleteTodo(tctx *ai.ToolContext, input DeleteTodoInput) (DeleteTodoResult, error) {
	ctx, userID, err := k.caller(tctx)
	if err != nil {
		return DeleteTodoResult{}, err
	}

	if input.TaskID == "" && input.DescriptionMatch == "" && !input.DeleteCompleted {
		return DeleteTodoResult{Error: "Either task_id, description_match, or delete_completed is required"}, nil
	}

	if input.DeleteCompleted {
		deleted, err := k.tasks.DeleteCompleted(ctx, userID)
		if err != nil {
			k.logger.Error("delete_todo failed", "error", err, "user_id", userID)
			return DeleteTodoResult{Error: "Failed to delete task"}, nil
		}
		count := len(deleted)
		result := DeleteTodoResult{Success: true, DeletedCount: &count}
		if count == 0 {
			result.Note = "No completed tasks to delete"
			return result, nil
		}
		for _, t := range deleted {
			result.DeletedTasks = append(result.DeletedTasks, Candidate{ID: t.ID.String(), Description: t.Description})
		}
		return result, nil
	}

	t, failure, err := k.resolveTask(ctx, userID, input.TaskID, input.DescriptionMatch)
	if err != nil {
		k.logger.Error("delete_todo failed", "error", err, "user_id", userID)
		return DeleteTodoResult{Error: "Failed to delete task"}, nil
	}
	if failure != nil {
		return DeleteTodoResult{Error: failure.message, Found: failure.found, Matches: failure.matches}, nil
	}

	if err := k.tasks.Delete(ctx, userID, t.ID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return DeleteTodoResult{Error: msgNoMatch, Found: falsePtr()}, nil
		}
		k.logger.Error("delete_todo failed", "error", err, "user_id", userID, "task_id", t.ID)
		return DeleteTodoResult{Error: "Failed to delete task"}, nil
	}

	return DeleteTodoResult{
		Success: true,
		Deleted: &Candidate{ID: t.ID.String(), Description: t.Description},
	}, nil
}
