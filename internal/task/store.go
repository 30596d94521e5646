package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store manages task persistence with a PostgreSQL backend.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a task store. logger may be nil.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

const taskColumns = "id, user_id, description, is_completed, created_at, updated_at"

// Create inserts a new task for the user. The description is validated and
// trimmed before insertion.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, description string) (*Task, error) {
	description, err := ValidateDescription(description)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, description) VALUES ($1, $2) RETURNING `+taskColumns,
		userID, description)

	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Debug("created task", "task_id", t.ID, "user_id", userID)
	return t, nil
}

// Get retrieves a task by ID, scoped to the user.
func (s *Store) Get(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting task %s: %w", taskID, err)
	}
	return t, nil
}

// List returns the user's tasks, newest first. completed filters by
// completion state; nil returns all tasks.
func (s *Store) List(ctx context.Context, userID uuid.UUID, completed *bool) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}
	if completed != nil {
		query += ` AND is_completed = $2`
		args = append(args, *completed)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// UpdateDescription replaces a task's description, scoped to the user.
func (s *Store) UpdateDescription(ctx context.Context, userID, taskID uuid.UUID, description string) (*Task, error) {
	description, err := ValidateDescription(description)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET description = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3 RETURNING `+taskColumns,
		description, taskID, userID)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating task %s: %w", taskID, err)
	}

	s.logger.Debug("updated task description", "task_id", taskID, "user_id", userID)
	return t, nil
}

// SetCompleted sets a task's completion state, scoped to the user.
// updated_at is touched even when the state does not change; callers decide
// whether a repeat completion is worth reporting.
func (s *Store) SetCompleted(ctx context.Context, userID, taskID uuid.UUID, completed bool) (*Task, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET is_completed = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3 RETURNING `+taskColumns,
		completed, taskID, userID)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("completing task %s: %w", taskID, err)
	}

	s.logger.Debug("set task completion", "task_id", taskID, "completed", completed)
	return t, nil
}

// Delete removes a task, scoped to the user.
func (s *Store) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted task", "task_id", taskID, "user_id", userID)
	return nil
}

// DeleteCompleted removes all of the user's completed tasks and returns the
// deleted rows. Zero completed tasks is not an error.
func (s *Store) DeleteCompleted(ctx context.Context, userID uuid.UUID) ([]*Task, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND is_completed = TRUE RETURNING `+taskColumns,
		userID)
	if err != nil {
		return nil, fmt.Errorf("deleting completed tasks: %w", err)
	}
	defer rows.Close()

	var deleted []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deleted task: %w", err)
		}
		deleted = append(deleted, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deleting completed tasks: %w", err)
	}

	s.logger.Debug("deleted completed tasks", "user_id", userID, "count", len(deleted))
	return deleted, nil
}

// scanTask scans a task row from either a pgx.Row or pgx.Rows.
func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
