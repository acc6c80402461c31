// Package serverenv configures and runs the example stdio servers from
// environment variables.
package serverenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/tmc/mcpcore"
	"github.com/tmc/mcpcore/internal/audit"
)

// Config is read from the environment. Defaults are provided via struct
// tags.
type Config struct {
	// LogLevel is one of debug, info, warn or error. ENV: MCP_LOG_LEVEL
	LogLevel string `env:"MCP_LOG_LEVEL,default=info"`
	// LogFormat is text or json. ENV: MCP_LOG_FORMAT
	LogFormat string `env:"MCP_LOG_FORMAT,default=text"`
	// AuditDB is the path of a SQLite call journal, or ":memory:" for a
	// journal that lives as long as the process. Empty disables
	// auditing. ENV: MCP_AUDIT_DB
	AuditDB string `env:"MCP_AUDIT_DB"`
	// RateLimit is the per-session request rate in requests per second.
	// Zero disables rate limiting. ENV: MCP_RATE_LIMIT
	RateLimit float64 `env:"MCP_RATE_LIMIT,default=0"`
	// Instructions are returned to clients on initialize.
	// ENV: MCP_INSTRUCTIONS
	Instructions string `env:"MCP_INSTRUCTIONS"`
}

// Load decodes Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// Logger returns a logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Options returns the service options selected by c. The returned close
// function releases the audit journal, if any.
func (c Config) Options(logger *slog.Logger) ([]mcpcore.Option, func() error, error) {
	opts := []mcpcore.Option{mcpcore.WithLogger(logger)}
	if c.Instructions != "" {
		opts = append(opts, mcpcore.WithInstructions(c.Instructions))
	}
	if c.RateLimit > 0 {
		burst := int(c.RateLimit)
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, mcpcore.WithRateLimiting(mcpcore.RateLimitConfig{
			GlobalRPS:   c.RateLimit,
			GlobalBurst: burst,
		}))
	}
	closer := func() error { return nil }
	if c.AuditDB != "" {
		path := c.AuditDB
		if path == ":memory:" {
			path = ""
		}
		j, err := audit.Open(path, logger)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, mcpcore.WithObserver(j))
		closer = j.Close
	}
	return opts, closer, nil
}

// Run loads the configuration, builds a service with build and serves it
// on stdin and stdout until stdin is closed or the process is interrupted.
// Logs go to stderr.
func Run(build func(logger *slog.Logger, opts ...mcpcore.Option) (*mcpcore.Service, error)) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	opts, closeAudit, err := cfg.Options(logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	svc, err := build(logger, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	info := svc.Info()
	logger.Info("server.start", slog.String("name", info.Name), slog.String("version", info.Version))
	return mcpcore.NewServer(svc).Serve(ctx, mcpcore.NewStdioTransport())
}
