// Package app wires configuration, storage, the AI runtime, and the
// chat agent into a single application container with managed lifecycle.
package app

import (
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/chat"
	"github.com/taskora/taskora/internal/config"
	"github.com/taskora/taskora/internal/conversation"
	"github.com/taskora/taskora/internal/task"
	"github.com/taskora/taskora/internal/user"
)

// App holds all initialized application components.
// Create via Setup; release via Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	Users         *user.Store
	Tasks         *task.Store
	Conversations *conversation.Store
	Tokens        *auth.TokenIssuer
	Agent         *chat.Agent

	// Cleanup functions, run in reverse initialization order.
	otelCleanup func()
	dbCleanup   func()
}

// Close releases all resources held by the App.
// Safe to call on a partially initialized App and safe to call twice.
func (a *App) Close() error {
	var errs []error

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}

	return errors.Join(errs...)
}
