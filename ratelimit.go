package mcpcore

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a request exceeds its rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter throttles requests per session. Limits apply globally, per
// JSON-RPC method and per tool. A request over its limit is rejected rather
// than delayed, so a session never stalls behind its own limiter.
type RateLimiter struct {
	global *rate.Limiter

	mu      sync.RWMutex
	methods map[string]*rate.Limiter
	tools   map[string]*rate.Limiter // "*" is the fallback
}

// RateLimitConfig defines rate limiting settings. A non-positive rate means
// unlimited.
type RateLimitConfig struct {
	// GlobalRPS and GlobalBurst bound every request of a session.
	GlobalRPS   float64
	GlobalBurst int

	// MethodRPS and MethodBurst are keyed by JSON-RPC method name.
	MethodRPS   map[string]float64
	MethodBurst map[string]int

	// ToolRPS and ToolBurst are keyed by tool name. The "*" entry covers
	// tools without an entry of their own; all such tools share it.
	ToolRPS   map[string]float64
	ToolBurst map[string]int
}

// DefaultRateLimitConfig returns limits suited to an interactive client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalRPS:   100,
		GlobalBurst: 50,
		MethodRPS: map[string]float64{
			MethodReadResource:  20,
			MethodListResources: 10,
			MethodCallTool:      10,
		},
		MethodBurst: map[string]int{
			MethodReadResource:  10,
			MethodListResources: 5,
			MethodCallTool:      5,
		},
		ToolRPS: map[string]float64{
			"*": 5,
		},
		ToolBurst: map[string]int{
			"*": 5,
		},
	}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		global:  newLimiter(cfg.GlobalRPS, cfg.GlobalBurst),
		methods: make(map[string]*rate.Limiter),
		tools:   make(map[string]*rate.Limiter),
	}
	for method, rps := range cfg.MethodRPS {
		rl.methods[method] = newLimiter(rps, cfg.MethodBurst[method])
	}
	for tool, rps := range cfg.ToolRPS {
		rl.tools[tool] = newLimiter(rps, cfg.ToolBurst[tool])
	}
	return rl
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Allow reports whether a request for method may proceed now.
// It returns an error wrapping ErrRateLimited if not.
func (rl *RateLimiter) Allow(method string) error {
	if !rl.global.Allow() {
		return ErrRateLimited
	}
	rl.mu.RLock()
	limiter, ok := rl.methods[method]
	rl.mu.RUnlock()
	if ok && !limiter.Allow() {
		return fmt.Errorf("%w for method %s", ErrRateLimited, method)
	}
	return nil
}

// AllowTool reports whether a call to the named tool may proceed now.
func (rl *RateLimiter) AllowTool(name string) error {
	rl.mu.RLock()
	limiter, ok := rl.tools[name]
	if !ok {
		limiter = rl.tools["*"]
	}
	rl.mu.RUnlock()
	if limiter != nil && !limiter.Allow() {
		return fmt.Errorf("%w for tool %s", ErrRateLimited, name)
	}
	return nil
}

// UpdateMethodLimit replaces the limit for method. A non-positive rps
// removes the limit.
func (rl *RateLimiter) UpdateMethodLimit(method string, rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.methods[method] = newLimiter(rps, burst)
}

// UpdateToolLimit replaces the limit for the named tool.
func (rl *RateLimiter) UpdateToolLimit(tool string, rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tools[tool] = newLimiter(rps, burst)
}
