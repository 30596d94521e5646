package tools

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/taskora/taskora/internal/conversation"
)

// Recorder collects tool invocation audit records for one agent loop
// invocation. The chat layer persists the collected records alongside
// the assistant reply.
type Recorder struct {
	mu          sync.Mutex
	invocations []conversation.ToolInvocation
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe appends the audit record for one completed tool execution.
// A non-nil callErr marks the record as a dispatch error; a tool that
// returned a failure outcome is still a successful dispatch.
func (r *Recorder) Observe(toolName string, args, result any, callErr error, duration time.Duration) {
	inv := conversation.ToolInvocation{
		ToolName:   toolName,
		Arguments:  marshalRaw(args),
		Status:     conversation.StatusSuccess,
		DurationMS: duration.Milliseconds(),
	}
	if callErr != nil {
		inv.Status = conversation.StatusError
		inv.Result = marshalRaw(map[string]string{"error": callErr.Error()})
	} else {
		inv.Result = marshalRaw(result)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, inv)
}

// Invocations returns the collected records in execution order.
func (r *Recorder) Invocations() []conversation.ToolInvocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]conversation.ToolInvocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}

func marshalRaw(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage(`null`)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}
