package tools

import (
	"context"

	"github.com/google/uuid"
)

// callerKey is an unexported context key for zero-allocation type safety.
type callerKey struct{}

// recorderKey is an unexported context key for the per-request recorder.
type recorderKey struct{}

// ContextWithCaller stores the authenticated owner identity in context.
// The chat layer injects it for exactly one agent loop invocation; tool
// handlers read it to scope every store operation. It must never be
// shared across requests.
func ContextWithCaller(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// CallerFromContext retrieves the owner identity from context.
func CallerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerKey{}).(uuid.UUID)
	return id, ok
}

// ContextWithRecorder stores the per-request invocation recorder in
// context so instrumented tools can report their executions.
func ContextWithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFromContext retrieves the invocation recorder from context.
func RecorderFromContext(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(recorderKey{}).(*Recorder)
	return r, ok
}
