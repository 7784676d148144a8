// Package store archives finished conversation turns and summaries to a
// local SQLite database. Archiving is best-effort: a write failure is logged
// by the caller and never blocks the audio path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

CREATE TABLE IF NOT EXISTS summaries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	content     TEXT NOT NULL,
	turns       INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
`

type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database and applies the schema.
func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive database ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) SaveTurn(ctx context.Context, sessionID, role, content string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		sessionID, role, content, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (a *Archive) SaveSummary(ctx context.Context, sessionID, content string, turns int) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO summaries (session_id, content, turns, created_at) VALUES (?, ?, ?, ?)",
		sessionID, content, turns, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (a *Archive) RecordReset(ctx context.Context, sessionID string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO resets (session_id, created_at) VALUES (?, ?)",
		sessionID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record reset: %w", err)
	}
	return nil
}

// Turn is one archived conversation turn.
type Turn struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt string
}

// Turns returns a session's archived turns in insertion order.
func (a *Archive) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, session_id, role, content, created_at FROM turns WHERE session_id = ? ORDER BY id",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
