package mcpcore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// NotificationHandler handles an inbound MCP notification.
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage) error

// Notification methods
const (
	MethodInitialized = "notifications/initialized"
	MethodCancelled   = "notifications/cancelled"
)

// Notifier routes inbound notifications to registered handlers.
// Notifications are never answered; a handler error is only logged.
type Notifier struct {
	mu       sync.RWMutex
	handlers map[string][]NotificationHandler
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		handlers: make(map[string][]NotificationHandler),
	}
}

// Handle registers a handler for a notification method.
func (n *Notifier) Handle(method string, h NotificationHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = append(n.handlers[method], h)
}

// Dispatch calls the handlers for method in registration order, stopping at
// the first error. Methods with no handlers are ignored.
func (n *Notifier) Dispatch(ctx context.Context, method string, params json.RawMessage) (err error) {
	n.mu.RLock()
	handlers := n.handlers[method]
	n.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler error: %w", &panicError{value: r})
		}
	}()
	for _, h := range handlers {
		if err := h(ctx, method, params); err != nil {
			return fmt.Errorf("handler error: %w", err)
		}
	}
	return nil
}

func (n *Notifier) clone() *Notifier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c := NewNotifier()
	for m, hs := range n.handlers {
		c.handlers[m] = append([]NotificationHandler(nil), hs...)
	}
	return c
}
