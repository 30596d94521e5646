// Package chat orchestrates one natural-language turn: it loads
// conversation context, invokes the model with the task tools, and
// persists the outcome with its audit trail.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/taskora/taskora/internal/conversation"
	"github.com/taskora/taskora/internal/tools"
)

const (
	// fallbackReply is returned when the model produces no text and no
	// tool requests.
	fallbackReply = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	defaultMaxTurns = 5
)

// ErrEmptyMessage indicates a chat turn with no content to send.
var ErrEmptyMessage = errors.New("message is empty")

// ConversationStore is the conversation persistence consumed by the
// agent.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, id *uuid.UUID) (*conversation.Conversation, error)
	History(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (*conversation.Message, error)
	AppendAssistantTurn(ctx context.Context, conversationID uuid.UUID, content string, invocations []conversation.ToolInvocation) (*conversation.Message, error)
	SetTitle(ctx context.Context, conversationID uuid.UUID, title string) error
}

// Config contains all required parameters for the agent.
type Config struct {
	Genkit        *genkit.Genkit
	Conversations ConversationStore
	Logger        *slog.Logger
	Tools         []ai.Tool // Pre-registered via tools.Kit.Register

	ModelName string // Provider-qualified model name (e.g. "googleai/gemini-2.5-flash")
	MaxTurns  int    // Maximum agentic loop turns inside one generation

	// Limiter paces outbound model calls across all requests. Nil
	// disables pacing.
	Limiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Conversations == nil {
		return errors.New("conversation store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	return nil
}

// Result is the outcome of one successful agent turn.
type Result struct {
	ConversationID uuid.UUID
	Reply          string
	Invocations    []conversation.ToolInvocation
}

// Agent runs the chat loop. It is stateless across requests; all
// per-request state travels through the context and the Result.
type Agent struct {
	g             *genkit.Genkit
	conversations ConversationStore
	logger        *slog.Logger
	limiter       *rate.Limiter

	modelName string
	maxTurns  int

	toolRefs  []ai.ToolRef
	toolNames string
}

// New creates an Agent with the given configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	a := &Agent{
		g:             cfg.Genkit,
		conversations: cfg.Conversations,
		logger:        cfg.Logger,
		limiter:       cfg.Limiter,
		modelName:     cfg.ModelName,
		maxTurns:      maxTurns,
		toolRefs:      toolRefs,
		toolNames:     strings.Join(names, ", "),
	}

	a.logger.Info("chat agent initialized",
		"tools", a.toolNames,
		"model", a.modelName,
		"max_turns", a.maxTurns,
	)
	return a, nil
}

// Execute runs one agent turn for the caller: resolve the conversation,
// persist the user message, invoke the model with the task tools, and
// persist the reply together with its tool invocation records.
//
// conversationID nil starts a new conversation. A conversation the
// caller does not own surfaces as conversation.ErrNotFound. A blank
// message returns ErrEmptyMessage before anything is persisted.
//
// A model failure returns *Error after persisting a user-safe apology
// into the conversation; store failures return plain errors.
func (a *Agent) Execute(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := a.conversations.GetOrCreate(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}

	history, err := a.conversations.History(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	isFirstMessage := len(history) == 0

	// The user message is durable before the model is involved, so a
	// model failure never loses it.
	if _, err := a.conversations.AppendMessage(ctx, conv.ID, conversation.RoleUser, message); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	messages := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case conversation.RoleUser:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case conversation.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(message)))

	recorder := tools.NewRecorder()
	toolCtx := tools.ContextWithCaller(ctx, userID)
	toolCtx = tools.ContextWithRecorder(toolCtx, recorder)

	reply, genErr := a.generate(toolCtx, messages)
	if genErr != nil {
		cerr := categorize(genErr)
		a.logger.Error("model invocation failed",
			"conversation_id", conv.ID,
			"category", cerr.Category,
			"error", genErr,
		)
		// Best-effort: keep the conversation coherent for the user.
		if _, err := a.conversations.AppendAssistantTurn(ctx, conv.ID, cerr.Message, recorder.Invocations()); err != nil {
			a.logger.Warn("persisting apology reply", "error", err, "conversation_id", conv.ID)
		}
		return nil, cerr
	}

	invocations := recorder.Invocations()
	if _, err := a.conversations.AppendAssistantTurn(ctx, conv.ID, reply, invocations); err != nil {
		return nil, fmt.Errorf("persisting assistant reply: %w", err)
	}

	if isFirstMessage && conv.Title == nil {
		a.setTitle(ctx, conv.ID, message)
	}

	return &Result{
		ConversationID: conv.ID,
		Reply:          reply,
		Invocations:    invocations,
	}, nil
}

// generate performs the single model round-trip for this turn. Tool
// calls happen inside it, bounded by maxTurns; a failed call is not
// retried.
func (a *Agent) generate(ctx context.Context, messages []*ai.Message) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	opts := []ai.GenerateOption{
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
	}
	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}

	start := time.Now()
	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return "", err
	}
	a.logger.Debug("model round-trip complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"tool_requests", len(resp.ToolRequests()),
	)

	reply := strings.TrimSpace(resp.Text())
	if reply == "" && len(resp.ToolRequests()) == 0 {
		a.logger.Warn("model returned empty response with no tool requests")
		reply = fallbackReply
	}
	return reply, nil
}
