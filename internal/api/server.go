package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/chat"
	"github.com/taskora/taskora/internal/conversation"
	"github.com/taskora/taskora/internal/task"
	"github.com/taskora/taskora/internal/user"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Agent         *chat.Agent         // Required
	Users         *user.Store         // Required
	Tasks         *task.Store         // Required
	Conversations *conversation.Store // Required
	Tokens        *auth.TokenIssuer   // Required
	Pool          *pgxpool.Pool       // Optional: nil disables pool stats in /ready

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers

	ChatRequestsPerMinute int // Per-user chat quota (0 = default 20)
	RateBurst             int // Per-IP burst for the global limiter (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("chat agent is required")
	}
	if cfg.Users == nil || cfg.Tasks == nil || cfg.Conversations == nil {
		return nil, errors.New("user, task, and conversation stores are required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chatQuota := cfg.ChatRequestsPerMinute
	if chatQuota <= 0 {
		chatQuota = 20
	}

	ah := &authHandler{users: cfg.Users, tokens: cfg.Tokens, logger: logger}
	th := &taskHandler{tasks: cfg.Tasks, logger: logger}
	ch := &chatHandler{agent: cfg.Agent, limiter: newChatRateLimiter(chatQuota), logger: logger}
	vh := &conversationHandler{conversations: cfg.Conversations, logger: logger}

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/register", ah.register)
	mux.HandleFunc("POST /api/v1/auth/login", ah.login)

	// Authenticated routes
	protect := func(h http.HandlerFunc) http.Handler {
		return authRequired(cfg.Tokens, logger, h)
	}

	mux.Handle("GET /api/v1/tasks", protect(th.list))
	mux.Handle("POST /api/v1/tasks", protect(th.create))
	mux.Handle("GET /api/v1/tasks/{id}", protect(th.get))
	mux.Handle("PATCH /api/v1/tasks/{id}", protect(th.update))
	mux.Handle("DELETE /api/v1/tasks/{id}", protect(th.delete))

	mux.Handle("POST /api/v1/chat", protect(ch.send))

	mux.Handle("GET /api/v1/conversations", protect(vh.list))
	mux.Handle("GET /api/v1/conversations/{id}", protect(vh.get))
	mux.Handle("DELETE /api/v1/conversations/{id}", protect(vh.delete))

	// Global per-IP limiter guards everything, including auth.
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux separates health probes from the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
