package mcpcore

import (
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Protocol version constants
const (
	LatestProtocolVersion = "2025-06-18"
	JSONRPCVersion        = "2.0"
)

// SupportedProtocolVersions lists the protocol versions a session accepts,
// newest first.
var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// negotiateVersion returns the client's version when supported and the
// latest version otherwise.
func negotiateVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}
	return LatestProtocolVersion
}

// Service holds the tools and resources of a server. Tools and resources
// are registered at startup; each Session takes a snapshot of them when it
// is created, so registrations made later only affect later sessions.
type Service struct {
	mu           sync.RWMutex
	tools        *ToolRegistry
	resources    *ResourceRegistry
	notify       *Notifier
	name         string
	version      string
	instructions string
	logger       *slog.Logger
	observer     Observer
	limits       *RateLimitConfig
}

// NewService creates a new MCP service with default configuration
func NewService(name, version string, opts ...Option) *Service {
	s := &Service{
		tools:     NewToolRegistry(),
		resources: NewResourceRegistry(),
		notify:    NewNotifier(),
		name:      name,
		version:   version,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info returns the server's name and version.
func (s *Service) Info() Implementation {
	return Implementation{Name: s.name, Version: s.version}
}

// Handle registers a handler for an inbound notification method.
func (s *Service) Handle(method string, h NotificationHandler) {
	s.notify.Handle(method, h)
}

// RegisterTool adds a tool to the service.
func (s *Service) RegisterTool(t ToolSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools.Register(t)
}

// RegisterResource adds a resource to the service.
func (s *Service) RegisterResource(r ResourceSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources.Register(r)
}

// Tools returns the registered tools in registration order.
func (s *Service) Tools() []ToolSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tools.List()
}

// Resources returns the registered resources in registration order.
func (s *Service) Resources() []ResourceSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resources.List()
}

// NewSession returns a new uninitialized session over a snapshot of the
// service's catalog. Sessions share no mutable state with each other or
// with the service.
func (s *Service) NewSession() *Session {
	s.mu.RLock()
	tools, resources := s.tools.clone(), s.resources.clone()
	s.mu.RUnlock()

	id := uuid.NewString()
	logger := s.logger.With(slog.String("session", id))
	d := NewDispatcher(tools, resources, logger)
	d.observer = s.observer
	sess := &Session{
		id:       id,
		logger:   logger,
		dispatch: d,
		notify:   s.notify.clone(),
		info:     s.Info(),
		caps: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		instructions: s.instructions,
	}
	if s.limits != nil {
		sess.limiter = NewRateLimiter(*s.limits)
		d.limiter = sess.limiter
	}
	logger.Debug("session.new", slog.Int("tools", tools.Len()), slog.Int("resources", resources.Len()))
	return sess
}
