// Package sqlite provides a durable SessionStore backed by a SQLite database.
// Message appends run inside a transaction with a per-session sequence column,
// giving the same per-id serialization and deterministic total order as the
// in-memory store while surviving process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/turnloop/turnloop/core"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	status  TEXT NOT NULL,
	created TIMESTAMP NOT NULL,
	updated TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	seq          INTEGER NOT NULL,
	role         TEXT NOT NULL,
	content      TEXT NOT NULL,
	tool_calls   TEXT,
	tool_call_id TEXT,
	created      TIMESTAMP NOT NULL,
	UNIQUE (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// Store is a SQLite backed SessionStore.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) a store at the given database path and applies the
// schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing database handle, applying the schema.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("apply session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load returns an existing session snapshot or initializes an active one on
// first reference to the id.
func (s *Store) Load(ctx context.Context, sessionID string) (*core.Session, error) {
	if err := s.ensure(ctx, sessionID); err != nil {
		return nil, err
	}

	sess := core.NewSession(sessionID)
	var status string
	var created, updated time.Time
	row := s.db.QueryRowContext(ctx, `SELECT status, created, updated FROM sessions WHERE id = ?`, sessionID)
	if err := row.Scan(&status, &created, &updated); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	sess.Status = core.Status(status)
	sess.Created = created
	sess.Updated = updated

	msgs, err := s.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs
	return sess, nil
}

// Append atomically adds a message to the session history. The transaction
// either commits the full row or nothing, so cancellation mid-turn never
// leaves a partial write.
func (s *Store) Append(ctx context.Context, sessionID string, m core.Message) error {
	if err := s.ensure(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var toolCalls any
	if len(m.ToolCalls) > 0 {
		raw, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool calls: %w", err)
		}
		toolCalls = string(raw)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, seq, role, content, tool_calls, tool_call_id, created)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?), ?, ?, ?, ?, ?)`,
		m.ID, sessionID, sessionID, string(m.Role), m.Content, toolCalls, m.ToolCallID, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append message to %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated = ? WHERE id = ?`, time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}
	return tx.Commit()
}

// Messages returns a consistent ordered snapshot of the session history.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_call_id, created
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	msgs := []core.Message{}
	for rows.Next() {
		var m core.Message
		var role string
		var toolCalls, toolCallID sql.NullString
		if err := rows.Scan(&m.ID, &role, &m.Content, &toolCalls, &toolCallID, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = core.Role(role)
		m.ToolCallID = toolCallID.String
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetStatus transitions the session lifecycle state.
func (s *Store) SetStatus(ctx context.Context, sessionID string, status core.Status) error {
	if err := s.ensure(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ?, updated = ? WHERE id = ?`,
		string(status), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("set status for %s: %w", sessionID, err)
	}
	return nil
}

// ensure lazily creates the session row on first reference.
func (s *Store) ensure(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, created, updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sessionID, string(core.StatusActive), now, now)
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", sessionID, err)
	}
	return nil
}
