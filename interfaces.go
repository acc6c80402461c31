package mcpcore

import (
	"context"
	"time"
)

// Outcome classifies how a tool call or resource read was answered.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeUnknown     Outcome = "unknown"
	OutcomeInvalid     Outcome = "invalid-arguments"
	OutcomeFault       Outcome = "fault"
	OutcomeRateLimited Outcome = "rate-limited"
	OutcomeNoContent   Outcome = "no-content"
)

// ToolEvent describes one completed tool call.
type ToolEvent struct {
	Session  string
	Tool     string
	Outcome  Outcome
	Err      error // set for every outcome but OutcomeOK
	Duration time.Duration
}

// ResourceEvent describes one completed resource read.
type ResourceEvent struct {
	Session  string
	URI      string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer is notified after every tool call and resource read.
// Methods are called synchronously on the session's goroutine and must not
// block for long.
type Observer interface {
	ToolCalled(ctx context.Context, ev ToolEvent)
	ResourceRead(ctx context.Context, ev ResourceEvent)
}

type sessionKey struct{}

// SessionID returns the ID of the session serving ctx, or "" outside of a
// session.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

func withSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}
