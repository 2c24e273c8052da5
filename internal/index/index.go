// Package index persists a catalog of observed sessions to SQLite so session
// history can be listed across restarts.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/farouqaldori/claude-island/internal/chat"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    session_id   TEXT PRIMARY KEY,
    cwd          TEXT NOT NULL DEFAULT '',
    first_prompt TEXT NOT NULL DEFAULT '',
    item_count   INTEGER NOT NULL DEFAULT 0,
    updated_at   TEXT NOT NULL DEFAULT ''
);
`

// Entry is one cataloged session.
type Entry struct {
	SessionID   string
	Cwd         string
	FirstPrompt string
	ItemCount   int
	UpdatedAt   time.Time
}

// DB wraps the session catalog database.
type DB struct {
	db *sql.DB
}

// Open creates or opens the catalog at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// UpsertSession records or refreshes a session's catalog row from its current
// timeline.
func (d *DB) UpsertSession(sess chat.Session) error {
	_, err := d.db.Exec(`
        INSERT INTO sessions (session_id, cwd, first_prompt, item_count, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(session_id) DO UPDATE SET
            cwd          = excluded.cwd,
            first_prompt = excluded.first_prompt,
            item_count   = excluded.item_count,
            updated_at   = excluded.updated_at`,
		sess.SessionID,
		sess.Cwd,
		firstPrompt(sess.ChatItems),
		len(sess.ChatItems),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.SessionID, err)
	}
	return nil
}

// List returns all cataloged sessions, most recently updated first.
func (d *DB) List() ([]Entry, error) {
	rows, err := d.db.Query(`
        SELECT session_id, cwd, first_prompt, item_count, updated_at
        FROM sessions
        ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated string
		if err := rows.Scan(&e.SessionID, &e.Cwd, &e.FirstPrompt, &e.ItemCount, &updated); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a session from the catalog.
func (d *DB) Delete(sessionID string) error {
	_, err := d.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// firstPrompt returns the first user message, truncated for display.
func firstPrompt(items []chat.ChatItem) string {
	for _, it := range items {
		if it.Kind != chat.KindUser {
			continue
		}
		text := it.Text
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return ""
}
