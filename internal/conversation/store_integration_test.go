package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskora/taskora/db"
	"github.com/taskora/taskora/internal/log"
)

// testPool connects to the database named by TEST_DATABASE_URL and runs
// migrations. Tests are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	if err := db.Migrate(url); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// createTestUser inserts a user row so conversation foreign keys resolve.
func createTestUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	email := fmt.Sprintf("conv-test-%s@example.com", uuid.NewString())
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, "x").Scan(&id)
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return n
}

func TestStore_Integration(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, log.NewNop())
	ctx := context.Background()

	t.Run("get or create", func(t *testing.T) {
		owner := createTestUser(t, pool)

		created, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate(nil) = %v", err)
		}
		if created.Title != nil {
			t.Errorf("new conversation title = %v, want nil", *created.Title)
		}

		same, err := store.GetOrCreate(ctx, owner, &created.ID)
		if err != nil {
			t.Fatalf("GetOrCreate(id) = %v", err)
		}
		if same.ID != created.ID {
			t.Errorf("resolved conversation %s, want %s", same.ID, created.ID)
		}
	})

	t.Run("foreign conversation is not found", func(t *testing.T) {
		owner := createTestUser(t, pool)
		intruder := createTestUser(t, pool)
		conv, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate() = %v", err)
		}

		if _, err := store.GetOrCreate(ctx, intruder, &conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetOrCreate() by non-owner = %v, want ErrNotFound", err)
		}
		if _, _, err := store.Get(ctx, intruder, conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() by non-owner = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, intruder, conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() by non-owner = %v, want ErrNotFound", err)
		}
		if _, err := store.GetOrCreate(ctx, owner, &conv.ID); err != nil {
			t.Errorf("conversation should survive foreign delete attempt: %v", err)
		}
	})

	t.Run("history filters roles and preserves order", func(t *testing.T) {
		owner := createTestUser(t, pool)
		conv, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate() = %v", err)
		}

		if _, err := store.AppendMessage(ctx, conv.ID, RoleUser, "add milk"); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}
		if _, err := store.AppendAssistantTurn(ctx, conv.ID, "Added milk.", nil); err != nil {
			t.Fatalf("AppendAssistantTurn() = %v", err)
		}
		_, err = pool.Exec(ctx,
			`INSERT INTO messages (conversation_id, role, content) VALUES ($1, 'system', 'internal note')`,
			conv.ID)
		if err != nil {
			t.Fatalf("inserting system message: %v", err)
		}
		if _, err := store.AppendMessage(ctx, conv.ID, RoleUser, "now bread"); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}

		history, err := store.History(ctx, conv.ID)
		if err != nil {
			t.Fatalf("History() = %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("History() returned %d messages, want 3 (system excluded)", len(history))
		}
		wantRoles := []string{RoleUser, RoleAssistant, RoleUser}
		wantContent := []string{"add milk", "Added milk.", "now bread"}
		for i := range history {
			if history[i].Role != wantRoles[i] || history[i].Content != wantContent[i] {
				t.Errorf("history[%d] = %s %q, want %s %q",
					i, history[i].Role, history[i].Content, wantRoles[i], wantContent[i])
			}
		}
	})

	t.Run("assistant turn links audit records", func(t *testing.T) {
		owner := createTestUser(t, pool)
		conv, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate() = %v", err)
		}

		invocations := []ToolInvocation{
			{
				ToolName:   "add_todo",
				Arguments:  json.RawMessage(`{"description":"buy milk"}`),
				Result:     json.RawMessage(`{"success":true}`),
				Status:     StatusSuccess,
				DurationMS: 12,
			},
			{
				ToolName:  "list_todos",
				Arguments: json.RawMessage(`{}`),
				Status:    StatusError,
			},
		}
		msg, err := store.AppendAssistantTurn(ctx, conv.ID, "Done.", invocations)
		if err != nil {
			t.Fatalf("AppendAssistantTurn() = %v", err)
		}

		linked := countRows(t, pool,
			`SELECT count(*) FROM tool_invocations WHERE message_id = $1`, msg.ID)
		if linked != 2 {
			t.Errorf("linked invocations = %d, want 2", linked)
		}

		_, messages, err := store.Get(ctx, owner, conv.ID)
		if err != nil {
			t.Fatalf("Get() = %v", err)
		}
		if len(messages) != 1 {
			t.Fatalf("Get() returned %d messages, want 1", len(messages))
		}
		got := messages[0].Invocations
		if len(got) != 2 || got[0].ToolName != "add_todo" || got[1].Status != StatusError {
			t.Errorf("loaded invocations = %+v, want add_todo success then list_todos error", got)
		}
	})

	t.Run("delete cascades to messages and invocations", func(t *testing.T) {
		owner := createTestUser(t, pool)
		conv, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate() = %v", err)
		}
		if _, err := store.AppendMessage(ctx, conv.ID, RoleUser, "add milk"); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}
		msg, err := store.AppendAssistantTurn(ctx, conv.ID, "Added.", []ToolInvocation{
			{ToolName: "add_todo", Arguments: json.RawMessage(`{}`), Status: StatusSuccess},
		})
		if err != nil {
			t.Fatalf("AppendAssistantTurn() = %v", err)
		}

		if err := store.Delete(ctx, owner, conv.ID); err != nil {
			t.Fatalf("Delete() = %v", err)
		}

		if n := countRows(t, pool, `SELECT count(*) FROM messages WHERE conversation_id = $1`, conv.ID); n != 0 {
			t.Errorf("messages remaining = %d, want 0", n)
		}
		if n := countRows(t, pool, `SELECT count(*) FROM tool_invocations WHERE message_id = $1`, msg.ID); n != 0 {
			t.Errorf("tool invocations remaining = %d, want 0", n)
		}
		if err := store.Delete(ctx, owner, conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() = %v, want ErrNotFound", err)
		}
	})

	t.Run("list counts messages and orders by activity", func(t *testing.T) {
		owner := createTestUser(t, pool)
		first, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate() = %v", err)
		}
		second, err := store.GetOrCreate(ctx, owner, nil)
		if err != nil {
			t.Fatalf("GetOrCreate() = %v", err)
		}
		if _, err := store.AppendMessage(ctx, first.ID, RoleUser, "wakes first up"); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}

		list, err := store.List(ctx, owner, 0)
		if err != nil {
			t.Fatalf("List() = %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("List() returned %d conversations, want 2", len(list))
		}
		if list[0].ID != first.ID {
			t.Errorf("most recently active = %s, want %s (touched by append)", list[0].ID, first.ID)
		}
		if list[1].ID != second.ID {
			t.Errorf("second entry = %s, want idle conversation %s", list[1].ID, second.ID)
		}
		if list[0].MessageCount != 1 || list[1].MessageCount != 0 {
			t.Errorf("message counts = %d, %d, want 1, 0", list[0].MessageCount, list[1].MessageCount)
		}

		total, err := store.Count(ctx, owner)
		if err != nil {
			t.Fatalf("Count() = %v", err)
		}
		if total != 2 {
			t.Errorf("Count() = %d, want 2", total)
		}
	})
}
