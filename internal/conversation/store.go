package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskora/taskora/internal/log"
)

// Store persists conversations in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// GetOrCreate loads the caller's conversation by ID, or creates a fresh
// one when id is nil. A conversation owned by someone else is reported
// as ErrNotFound.
func (s *Store) GetOrCreate(ctx context.Context, userID uuid.UUID, id *uuid.UUID) (*Conversation, error) {
	if id == nil {
		c := &Conversation{}
		err := s.pool.QueryRow(ctx,
			`INSERT INTO conversations (user_id)
			 VALUES ($1)
			 RETURNING id, user_id, title, created_at, updated_at`,
			userID,
		).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		s.logger.Info("conversation created", "conversation_id", c.ID, "user_id", userID)
		return c, nil
	}

	c := &Conversation{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations
		 WHERE id = $1 AND user_id = $2`,
		*id, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// History returns the conversation's user and assistant messages in
// chronological order. System and tool messages are never replayed to
// the model.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE conversation_id = $1 AND role IN ($2, $3)
		 ORDER BY created_at, id`,
		conversationID, RoleUser, RoleAssistant,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// AppendMessage stores one message and bumps the conversation timestamp.
func (s *Store) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m := &Message{}
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, role, content, created_at`,
		conversationID, role, content,
	).Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := touchConversation(ctx, tx, conversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

// AppendAssistantTurn stores the assistant reply together with its tool
// invocation audit records in a single transaction, so a reply never
// appears without its audit trail.
func (s *Store) AppendAssistantTurn(ctx context.Context, conversationID uuid.UUID, content string, invocations []ToolInvocation) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m := &Message{}
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, role, content, created_at`,
		conversationID, RoleAssistant, content,
	).Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	for i := range invocations {
		inv := &invocations[i]
		inv.MessageID = m.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO tool_invocations (message_id, tool_name, arguments, result, status, duration_ms)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			m.ID, inv.ToolName, inv.Arguments, inv.Result, inv.Status, inv.DurationMS,
		).Scan(&inv.ID, &inv.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("append tool invocation %s: %w", inv.ToolName, err)
		}
	}
	m.Invocations = invocations

	if err := touchConversation(ctx, tx, conversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func touchConversation(ctx context.Context, tx pgx.Tx, conversationID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// List returns the caller's conversations, most recently active first,
// each annotated with its message count.
func (s *Store) List(ctx context.Context, userID uuid.UUID, limit int) ([]Conversation, error) {
	limit = NormalizeListLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
		        (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		 FROM conversations c
		 WHERE c.user_id = $1
		 ORDER BY c.updated_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// Count returns how many conversations the user owns.
func (s *Store) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM conversations WHERE user_id = $1`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// Get loads one conversation with its full message history and the tool
// invocations attached to each assistant message.
func (s *Store) Get(ctx context.Context, userID, conversationID uuid.UUID) (*Conversation, []Message, error) {
	c, err := s.GetOrCreate(ctx, userID, &conversationID)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}

	invRows, err := s.pool.Query(ctx,
		`SELECT ti.id, ti.message_id, ti.tool_name, ti.arguments, ti.result, ti.status, ti.duration_ms, ti.created_at
		 FROM tool_invocations ti
		 JOIN messages m ON m.id = ti.message_id
		 WHERE m.conversation_id = $1
		 ORDER BY ti.created_at, ti.id`,
		conversationID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load tool invocations: %w", err)
	}
	defer invRows.Close()

	for invRows.Next() {
		var inv ToolInvocation
		if err := invRows.Scan(&inv.ID, &inv.MessageID, &inv.ToolName, &inv.Arguments, &inv.Result, &inv.Status, &inv.DurationMS, &inv.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan tool invocation: %w", err)
		}
		if i, ok := index[inv.MessageID]; ok {
			msgs[i].Invocations = append(msgs[i].Invocations, inv)
		}
	}
	if err := invRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load tool invocations: %w", err)
	}

	return c, msgs, nil
}

// Delete removes the caller's conversation. Messages and tool
// invocations go with it through the store's foreign keys.
func (s *Store) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Info("conversation deleted", "conversation_id", conversationID, "user_id", userID)
	return nil
}

// SetTitle updates a conversation's title without bumping updated_at.
func (s *Store) SetTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $2 WHERE id = $1`,
		conversationID, title,
	)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}
