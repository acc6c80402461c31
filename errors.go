package mcpcore

import (
	"errors"
	"fmt"
)

// Session lifecycle errors. These are protocol-fatal: they are returned to
// the caller as errors and never folded into a result envelope.
var (
	ErrNotInitialized     = errors.New("session not initialized")
	ErrSessionClosed      = errors.New("session closed")
	ErrAlreadyInitialized = errors.New("session already initialized")
)

// Reason classifies a ValidationError.
type Reason string

const (
	ReasonMissingRequired Reason = "missing-required"
	ReasonWrongType       Reason = "wrong-type"
	ReasonOutOfRange      Reason = "out-of-range"
)

// ValidationError reports an argument that does not satisfy its declared
// parameter.
type ValidationError struct {
	Param  string
	Reason Reason
	Detail string // optional, human readable
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonMissingRequired:
		return fmt.Sprintf("missing required parameter %q", e.Param)
	case ReasonWrongType:
		return fmt.Sprintf("parameter %q has wrong type: %s", e.Param, e.Detail)
	case ReasonOutOfRange:
		return fmt.Sprintf("parameter %q out of range: %s", e.Param, e.Detail)
	}
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Reason)
}

// DuplicateNameError is returned when registering a tool name or resource
// URI that is already present.
type DuplicateNameError struct {
	Kind string // "tool" or "resource"
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already registered", e.Kind, e.Name)
}

// NotFoundError is returned by registry lookups that have no match.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ToolError wraps a fault raised by a tool handler.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string { return fmt.Sprintf("tool %s: %v", e.Tool, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }

// ResourceError wraps a fault raised by a resource resolver.
type ResourceError struct {
	URI string
	Err error
}

func (e *ResourceError) Error() string { return fmt.Sprintf("resource %s: %v", e.URI, e.Err) }
func (e *ResourceError) Unwrap() error { return e.Err }

// panicError carries a recovered panic value through the error path.
// Its message is the panic value alone, as a caller would see a raised fault.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprint(e.value) }
