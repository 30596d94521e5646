package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/taskora/taskora/internal/task"
)

// fakeTaskStore is an in-memory TaskStore with per-method error
// injection and call tracking.
type fakeTaskStore struct {
	tasks []*task.Task

	createErr error
	listErr   error
	updateErr error

	setCompletedCalls int
	deleteCalls       int
	lastCreated       string
}

func (f *fakeTaskStore) Create(_ context.Context, userID uuid.UUID, description string) (*task.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	validated, err := task.ValidateDescription(description)
	if err != nil {
		return nil, err
	}
	t := &task.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Description: validated,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.tasks = append(f.tasks, t)
	f.lastCreated = validated
	return t, nil
}

func (f *fakeTaskStore) Get(_ context.Context, userID, taskID uuid.UUID) (*task.Task, error) {
	for _, t := range f.tasks {
		if t.ID == taskID && t.UserID == userID {
			return t, nil
		}
	}
	return nil, task.ErrNotFound
}

func (f *fakeTaskStore) List(_ context.Context, userID uuid.UUID, completed *bool) ([]*task.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*task.Task
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if completed != nil && t.IsCompleted != *completed {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTaskStore) UpdateDescription(ctx context.Context, userID, taskID uuid.UUID, description string) (*task.Task, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	t, err := f.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	t.Description = description
	t.UpdatedAt = time.Now()
	return t, nil
}

func (f *fakeTaskStore) SetCompleted(ctx context.Context, userID, taskID uuid.UUID, completed bool) (*task.Task, error) {
	f.setCompletedCalls++
	t, err := f.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	t.IsCompleted = completed
	t.UpdatedAt = time.Now()
	return t, nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	f.deleteCalls++
	for i, t := range f.tasks {
		if t.ID == taskID && t.UserID == userID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return task.ErrNotFound
}

func (f *fakeTaskStore) DeleteCompleted(_ context.Context, userID uuid.UUID) ([]*task.Task, error) {
	var deleted []*task.Task
	var kept []*task.Task
	for _, t := range f.tasks {
		if t.UserID == userID && t.IsCompleted {
			deleted = append(deleted, t)
			continue
		}
		kept = append(kept, t)
	}
	f.tasks = kept
	return deleted, nil
}

func (f *fakeTaskStore) add(userID uuid.UUID, description string, completed bool) *task.Task {
	t := &task.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		IsCompleted: completed,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.tasks = append(f.tasks, t)
	return t
}

func toolContext(t *testing.T, userID uuid.UUID) *ai.ToolContext {
	t.Helper()
	ctx := ContextWithCaller(context.Background(), userID)
	return &ai.ToolContext{Context: ctx}
}

func TestAddTodo(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	kit := NewKit(store, nil)

	result, err := kit.AddTodo(toolContext(t, userID), AddTodoInput{Description: "  buy milk  "})
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Task == nil || result.Task.Description != "buy milk" {
		t.Errorf("expected trimmed description, got %+v", result.Task)
	}
	if store.lastCreated != "buy milk" {
		t.Errorf("store received %q", store.lastCreated)
	}
}

func TestAddTodo_Validation(t *testing.T) {
	kit := NewKit(&fakeTaskStore{}, nil)
	tctx := toolContext(t, uuid.New())

	result, err := kit.AddTodo(tctx, AddTodoInput{Description: "   "})
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if result.Success || result.Error != msgDescriptionMissing {
		t.Errorf("expected %q, got %+v", msgDescriptionMissing, result)
	}

	long := make([]byte, 0, 501)
	for range 501 {
		long = append(long, 'x')
	}
	result, err = kit.AddTodo(tctx, AddTodoInput{Description: string(long)})
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if result.Success || result.Error != msgDescriptionTooLong {
		t.Errorf("expected %q, got %+v", msgDescriptionTooLong, result)
	}
}

func TestAddTodo_StoreFailure(t *testing.T) {
	kit := NewKit(&fakeTaskStore{createErr: errors.New("connection refused")}, nil)

	result, err := kit.AddTodo(toolContext(t, uuid.New()), AddTodoInput{Description: "buy milk"})
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if result.Success || result.Error != "Failed to create task" {
		t.Errorf("expected store failure outcome, got %+v", result)
	}
}

func TestAddTodo_MissingCaller(t *testing.T) {
	kit := NewKit(&fakeTaskStore{}, nil)
	tctx := &ai.ToolContext{Context: context.Background()}

	if _, err := kit.AddTodo(tctx, AddTodoInput{Description: "buy milk"}); err == nil {
		t.Error("expected error when caller identity is absent")
	}
}

func TestListTodos_CountsCoverFullSet(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	store.add(userID, "buy milk", false)
	store.add(userID, "walk dog", true)
	store.add(userID, "file taxes", true)
	store.add(uuid.New(), "someone else's task", false)

	kit := NewKit(store, nil)
	includeCompleted := false
	result, err := kit.ListTodos(toolContext(t, userID), ListTodosInput{IncludeCompleted: &includeCompleted})
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if len(result.Tasks) != 1 {
		t.Errorf("expected 1 pending task listed, got %d", len(result.Tasks))
	}
	if result.Total != 3 || result.CompletedCount != 2 || result.PendingCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", result.Total, result.CompletedCount, result.PendingCount)
	}
}

func TestListTodos_DefaultsIncludeCompleted(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	store.add(userID, "buy milk", false)
	store.add(userID, "walk dog", true)

	kit := NewKit(store, nil)
	result, err := kit.ListTodos(toolContext(t, userID), ListTodosInput{})
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if len(result.Tasks) != 2 {
		t.Errorf("expected 2 tasks listed by default, got %d", len(result.Tasks))
	}
}

func TestCompleteTodo_SelectorRequired(t *testing.T) {
	kit := NewKit(&fakeTaskStore{}, nil)

	result, err := kit.CompleteTodo(toolContext(t, uuid.New()), CompleteTodoInput{})
	if err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}
	if result.Success || result.Error != msgSelectorRequired {
		t.Errorf("expected selector validation failure, got %+v", result)
	}
}

func TestCompleteTodo_InvalidID(t *testing.T) {
	kit := NewKit(&fakeTaskStore{}, nil)

	result, err := kit.CompleteTodo(toolContext(t, uuid.New()), CompleteTodoInput{TaskID: "not-a-uuid"})
	if err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}
	if result.Success || result.Error != msgInvalidTaskID {
		t.Errorf("expected invalid ID failure, got %+v", result)
	}
}

func TestCompleteTodo_UnknownID(t *testing.T) {
	kit := NewKit(&fakeTaskStore{}, nil)

	result, err := kit.CompleteTodo(toolContext(t, uuid.New()), CompleteTodoInput{TaskID: uuid.NewString()})
	if err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}
	if result.Success || result.Error != msgNoMatch {
		t.Errorf("expected no-match failure, got %+v", result)
	}
	if result.Found == nil || *result.Found {
		t.Error("expected found=false in result")
	}
}

func TestCompleteTodo_IDTakesPrecedence(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	target := store.add(userID, "buy milk", false)
	store.add(userID, "buy bread", false)

	kit := NewKit(store, nil)
	result, err := kit.CompleteTodo(toolContext(t, userID), CompleteTodoInput{
		TaskID:           target.ID.String(),
		DescriptionMatch: "buy",
	})
	if err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.Task.ID != target.ID.String() {
		t.Errorf("expected the explicitly identified task, got %s", result.Task.ID)
	}
}

func TestCompleteTodo_AmbiguousMatchDoesNotMutate(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	store.add(userID, "buy milk", false)
	store.add(userID, "buy bread", false)

	kit := NewKit(store, nil)
	result, err := kit.CompleteTodo(toolContext(t, userID), CompleteTodoInput{DescriptionMatch: "buy"})
	if err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}
	if result.Success || result.Error != msgAmbiguousMatch {
		t.Errorf("expected ambiguous failure, got %+v", result)
	}
	if len(result.Matches) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(result.Matches))
	}
	if store.setCompletedCalls != 0 {
		t.Errorf("ambiguous match must not mutate, SetCompleted called %d times", store.setCompletedCalls)
	}
	for _, task := range store.tasks {
		if task.IsCompleted {
			t.Errorf("task %q was mutated", task.Description)
		}
	}
}

func TestCompleteTodo_AlreadyCompleted(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	target := store.add(userID, "buy milk", true)

	kit := NewKit(store, nil)
	result, err := kit.CompleteTodo(toolContext(t, userID), CompleteTodoInput{TaskID: target.ID.String()})
	if err != nil {
		t.Fatalf("CompleteTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected idempotent success, got %q", result.Error)
	}
	if result.Note != msgAlreadyCompleted {
		t.Errorf("expected note %q, got %q", msgAlreadyCompleted, result.Note)
	}
	if store.setCompletedCalls != 1 {
		t.Errorf("expected SetCompleted to run, got %d calls", store.setCompletedCalls)
	}
}

func TestUpdateTodo(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	store.add(userID, "buy milk", false)

	kit := NewKit(store, nil)
	result, err := kit.UpdateTodo(toolContext(t, userID), UpdateTodoInput{
		NewDescription:   "buy oat milk",
		DescriptionMatch: "milk",
	})
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.PreviousDescription != "buy milk" {
		t.Errorf("previous_description = %q, want %q", result.PreviousDescription, "buy milk")
	}
	if result.Task.Description != "buy oat milk" {
		t.Errorf("updated description = %q", result.Task.Description)
	}
}

func TestUpdateTodo_RequiresNewDescription(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	target := store.add(userID, "buy milk", false)

	kit := NewKit(store, nil)
	result, err := kit.UpdateTodo(toolContext(t, userID), UpdateTodoInput{TaskID: target.ID.String()})
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if result.Success || result.Error != "New description is required" {
		t.Errorf("expected new-description validation failure, got %+v", result)
	}
}

func TestDeleteTodo_Single(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	target := store.add(userID, "buy milk", false)

	kit := NewKit(store, nil)
	result, err := kit.DeleteTodo(toolContext(t, userID), DeleteTodoInput{TaskID: target.ID.String()})
	if err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.Deleted == nil || result.Deleted.Description != "buy milk" {
		t.Errorf("deleted = %+v", result.Deleted)
	}
	if len(store.tasks) != 0 {
		t.Errorf("expected task removed, %d remain", len(store.tasks))
	}
}

func TestDeleteTodo_BulkCompleted(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	store.add(userID, "buy milk", false)
	store.add(userID, "walk dog", true)
	store.add(userID, "file taxes", true)

	kit := NewKit(store, nil)
	result, err := kit.DeleteTodo(toolContext(t, userID), DeleteTodoInput{DeleteCompleted: true})
	if err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.DeletedCount == nil || *result.DeletedCount != 2 {
		t.Errorf("deleted_count = %v, want 2", result.DeletedCount)
	}
	if len(result.DeletedTasks) != 2 {
		t.Errorf("expected 2 deleted task records, got %d", len(result.DeletedTasks))
	}
	if len(store.tasks) != 1 || store.tasks[0].Description != "buy milk" {
		t.Errorf("expected only the pending task to remain, got %d tasks", len(store.tasks))
	}
}

func TestDeleteTodo_BulkNothingToDelete(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{}
	store.add(userID, "buy milk", false)

	kit := NewKit(store, nil)
	result, err := kit.DeleteTodo(toolContext(t, userID), DeleteTodoInput{DeleteCompleted: true})
	if err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.DeletedCount == nil || *result.DeletedCount != 0 {
		t.Errorf("deleted_count = %v, want 0", result.DeletedCount)
	}
	if result.Note != "No completed tasks to delete" {
		t.Errorf("note = %q", result.Note)
	}
}

func TestDeleteTodo_SelectorRequired(t *testing.T) {
	kit := NewKit(&fakeTaskStore{}, nil)

	result, err := kit.DeleteTodo(toolContext(t, uuid.New()), DeleteTodoInput{})
	if err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("expected selector validation failure, got %+v", result)
	}
}
