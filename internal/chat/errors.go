package chat

import "strings"

// Error category identifiers used in logs and tests.
const (
	CategoryRateLimited   = "rate_limited"
	CategoryConfig        = "config"
	CategoryTimeout       = "timeout"
	CategoryContextLength = "context_length"
	CategoryConnectivity  = "connectivity"
	CategoryInvalidModel  = "invalid_model"
	CategoryGeneric       = "generic"
)

// Error is a categorized model or agent failure. Message is safe to
// show to the end user; the underlying cause is logged, never surfaced.
type Error struct {
	Category string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	return e.Category + ": " + e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As in logs and tests.
func (e *Error) Unwrap() error {
	return e.cause
}

// categorize maps a raw model failure to a user-safe Error.
//
// String matching is the only option here: Genkit and the provider SDKs
// do not expose typed errors for these failures.
func categorize(err error) *Error {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "rate limit", "rate_limit", "quota", "429"):
		return &Error{
			Category: CategoryRateLimited,
			Message:  "I'm receiving too many requests right now. Please wait a moment and try again.",
			cause:    err,
		}
	case containsAny(msg, "api key", "authentication", "unauthorized", "401", "403"):
		return &Error{
			Category: CategoryConfig,
			Message:  "There's a configuration issue with the AI service. Please contact support.",
			cause:    err,
		}
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return &Error{
			Category: CategoryTimeout,
			Message:  "The request took too long to process. Please try a simpler request or try again.",
			cause:    err,
		}
	case containsAny(msg, "context length", "token"):
		return &Error{
			Category: CategoryContextLength,
			Message:  "Your conversation has become too long. Please start a new chat to continue.",
			cause:    err,
		}
	case containsAny(msg, "connection", "network"):
		return &Error{
			Category: CategoryConnectivity,
			Message:  "I'm having trouble connecting to the AI service. Please try again in a moment.",
			cause:    err,
		}
	case strings.Contains(msg, "invalid") && strings.Contains(msg, "model"):
		return &Error{
			Category: CategoryInvalidModel,
			Message:  "There's a configuration issue with the AI model. Please contact support.",
			cause:    err,
		}
	default:
		return &Error{
			Category: CategoryGeneric,
			Message:  "I'm having trouble processing your request right now. Please try again.",
			cause:    err,
		}
	}
}

// containsAny checks if s contains any of the substrings. Callers pass
// lowercase substrings; s must already be lowercased.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
