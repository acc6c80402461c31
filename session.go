package mcpcore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session serves one client connection. It must be initialized before it
// answers catalog, call or read requests, and it rejects everything once
// closed:
//
//	Uninitialized --Initialize--> Ready --Close--> Closed
//
// Requests are expected one at a time, but the methods are safe to call
// concurrently. The session lock is never held while a handler runs.
type Session struct {
	id           string
	logger       *slog.Logger
	info         Implementation
	caps         ServerCapabilities
	instructions string
	limiter      *RateLimiter

	mu       sync.Mutex
	state    State
	dispatch *Dispatcher
	notify   *Notifier
	client   Implementation
	version  string
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProtocolVersion returns the negotiated protocol version, or "" before
// initialization.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Initialize moves the session to Ready. A nil params is accepted and
// negotiates the latest protocol version.
func (s *Session) Initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error) {
	if params == nil {
		params = &InitializeParams{}
	}
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil, ErrAlreadyInitialized
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.state = StateReady
	s.client = params.ClientInfo
	s.version = negotiateVersion(params.ProtocolVersion)
	version := s.version
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session.initialize.ok",
		slog.String("client", params.ClientInfo.Name),
		slog.String("client_version", params.ProtocolVersion),
		slog.String("protocol_version", version))
	return &InitializeResult{
		ProtocolVersion: version,
		Capabilities:    s.caps,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

// Ping checks that the session is open. It is answered before
// initialization too.
func (s *Session) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	return nil
}

// ready returns the dispatcher of a Ready session.
func (s *Session) ready(method string) (*Dispatcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUninitialized:
		return nil, ErrNotInitialized
	case StateClosed:
		return nil, ErrSessionClosed
	}
	// Calls and reads are throttled by the dispatcher.
	if s.limiter != nil && method != MethodCallTool && method != MethodReadResource {
		if err := s.limiter.Allow(method); err != nil {
			return nil, err
		}
	}
	return s.dispatch, nil
}

// ListTools returns the tool catalog in registration order.
func (s *Session) ListTools(ctx context.Context) ([]ToolInfo, error) {
	d, err := s.ready(MethodListTools)
	if err != nil {
		return nil, err
	}
	return d.ListTools(), nil
}

// ListResources returns the resource catalog in registration order.
func (s *Session) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	d, err := s.ready(MethodListResources)
	if err != nil {
		return nil, err
	}
	return d.ListResources(), nil
}

// CallTool calls the named tool. The only errors are lifecycle errors;
// every other outcome is reported in the result.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	d, err := s.ready(MethodCallTool)
	if err != nil {
		return nil, err
	}
	return d.CallTool(withSessionID(ctx, s.id), name, args), nil
}

// ReadResource reads the resource at uri. The only errors are lifecycle
// errors; every other outcome is reported in the result.
func (s *Session) ReadResource(ctx context.Context, uri string) (*ReadResult, error) {
	d, err := s.ready(MethodReadResource)
	if err != nil {
		return nil, err
	}
	return d.ReadResource(withSessionID(ctx, s.id), uri), nil
}

// Notify delivers an inbound notification to the service's handlers.
// Notifications on a closed session are dropped.
func (s *Session) Notify(ctx context.Context, method string, params json.RawMessage) error {
	s.mu.Lock()
	closed := s.state == StateClosed
	n := s.notify
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if err := n.Dispatch(withSessionID(ctx, s.id), method, params); err != nil {
		s.logger.WarnContext(ctx, "notification.fail", slog.String("method", method), slog.String("err", err.Error()))
		return err
	}
	return nil
}

// Close moves the session to Closed and releases its catalog. Closing a
// closed session does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.dispatch = nil
	s.notify = nil
	s.logger.Info("session.close")
	return nil
}
