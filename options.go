package mcpcore

import "log/slog"

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger. Each session logs through it with a
// "session" attribute.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimiting enables rate limiting. Every session gets its own
// limiter built from cfg.
func WithRateLimiting(cfg RateLimitConfig) Option {
	return func(s *Service) {
		s.limits = &cfg
	}
}

// WithObserver registers an observer for tool calls and resource reads.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(s *Service) {
		s.instructions = text
	}
}

// WithNotificationHandler registers a handler for an inbound notification.
func WithNotificationHandler(method string, h NotificationHandler) Option {
	return func(s *Service) {
		s.notify.Handle(method, h)
	}
}
