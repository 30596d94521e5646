// Package task provides todo task persistence and fuzzy lookup.
//
// All store operations are scoped to an owning user. A task that exists but
// belongs to another user is reported as ErrNotFound, never as a permission
// error, so callers cannot probe for foreign task IDs.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxDescriptionLength is the maximum task description length in characters.
const MaxDescriptionLength = 500

// Sentinel errors for task operations. Check with errors.Is().
var (
	// ErrNotFound indicates the task does not exist or belongs to another user.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidDescription indicates the description is empty or too long.
	ErrInvalidDescription = errors.New("invalid task description")
)

// Task is a single todo item.
type Task struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidateDescription checks a task description after trimming whitespace.
// Returns the trimmed description.
func ValidateDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "", fmt.Errorf("%w: description is empty", ErrInvalidDescription)
	}
	if len([]rune(trimmed)) > MaxDescriptionLength {
		return "", fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDescription, MaxDescriptionLength)
	}
	return trimmed, nil
}
