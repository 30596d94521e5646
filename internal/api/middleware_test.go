package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/log"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "192.0.2.1:1234", "", "", false, "192.0.2.1"},
		{"headers ignored without trust", "192.0.2.1:1234", "198.51.100.7", "", false, "192.0.2.1"},
		{"x-real-ip trusted", "192.0.2.1:1234", "198.51.100.7", "", true, "198.51.100.7"},
		{"x-forwarded-for first", "192.0.2.1:1234", "", "203.0.113.5, 198.51.100.7", true, "203.0.113.5"},
		{"invalid header falls through", "192.0.2.1:1234", "not-an-ip", "", true, "192.0.2.1"},
		{"real-ip wins over forwarded", "192.0.2.1:1234", "198.51.100.7", "203.0.113.5", true, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	issuer := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	logger := log.NewNop()
	userID := uuid.New()

	var gotUserID uuid.UUID
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUserID, _ = userIDFromContext(r.Context())
	})
	handler := authRequired(issuer, logger, next)

	t.Run("missing header", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("status = %d, called = %v", rec.Code, called)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		called = false
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("status = %d, called = %v", rec.Code, called)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		called = false
		token, err := issuer.Issue(userID)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		if !called {
			t.Fatal("next handler not reached")
		}
		if gotUserID != userID {
			t.Errorf("context user = %s, want %s", gotUserID, userID)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := log.NewNop()
	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("unexpected Allow-Origin %q", got)
		}
	})
}

func TestSetSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	setSecurityHeaders(rec)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
