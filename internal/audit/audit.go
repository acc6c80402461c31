// Package audit records tool calls and resource reads in a SQLite journal.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/mcpcore"
	_ "modernc.org/sqlite"
)

// Journal is an mcpcore.Observer that appends one row per event.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ mcpcore.Observer = (*Journal)(nil)

// Entry is one journal row.
type Entry struct {
	ID       int64
	At       time.Time
	Session  string
	Kind     string // "tool" or "resource"
	Name     string // tool name or resource URI
	Outcome  mcpcore.Outcome
	Error    string
	Duration time.Duration
}

// Open opens the journal at path, creating it if needed. An empty path
// opens a private in-memory journal.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	dsn := "file:" + path
	if path == "" {
		dsn = "file:audit-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps an in-memory database alive and
	// serializes writers.
	db.SetMaxOpenConns(1)
	if err := initDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Journal{db: db, logger: logger}, nil
}

func initDB(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		session_id TEXT,
		kind TEXT CHECK(kind IN ('tool', 'resource')) NOT NULL,
		name TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		duration_us INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_journal_session ON journal(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// ToolCalled records a tool call.
func (j *Journal) ToolCalled(ctx context.Context, ev mcpcore.ToolEvent) {
	j.insert(ctx, ev.Session, "tool", ev.Tool, ev.Outcome, ev.Err, ev.Duration)
}

// ResourceRead records a resource read.
func (j *Journal) ResourceRead(ctx context.Context, ev mcpcore.ResourceEvent) {
	j.insert(ctx, ev.Session, "resource", ev.URI, ev.Outcome, ev.Err, ev.Duration)
}

func (j *Journal) insert(ctx context.Context, session, kind, name string, outcome mcpcore.Outcome, err error, d time.Duration) {
	var msg sql.NullString
	if err != nil {
		msg = sql.NullString{String: err.Error(), Valid: true}
	}
	_, xerr := j.db.ExecContext(ctx, `
		INSERT INTO journal (at, session_id, kind, name, outcome, error, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UnixNano(), session, kind, name, string(outcome), msg, d.Microseconds())
	if xerr != nil {
		// The journal must never affect the call it records.
		j.logger.ErrorContext(ctx, "audit.insert.fail", slog.String("err", xerr.Error()))
	}
}

// Entries returns up to limit entries, oldest first. A non-positive limit
// returns all entries.
func (j *Journal) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, at, session_id, kind, name, outcome, error, duration_us
		FROM journal ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			at, dur int64
			session sql.NullString
			msg     sql.NullString
			outcome string
		)
		if err := rows.Scan(&e.ID, &at, &session, &e.Kind, &e.Name, &outcome, &msg, &dur); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.At = time.Unix(0, at)
		e.Session = session.String
		e.Outcome = mcpcore.Outcome(outcome)
		e.Error = msg.String
		e.Duration = time.Duration(dur) * time.Microsecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
