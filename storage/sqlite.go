package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"voicerelay/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLitePersister stores one row per session with the history as a JSON column.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens the database at dsn and migrates the schema.
func NewSQLitePersister(dsn string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// In-memory databases are per connection.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	p := &SQLitePersister{db: db}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate sqlite: %w", err)
	}
	return p, nil
}

func (p *SQLitePersister) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session_history (
			session_id TEXT PRIMARY KEY,
			turns TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := p.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *SQLitePersister) LoadAll(ctx context.Context) (map[string][]core.Turn, []string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT session_id, turns FROM session_history`)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: query histories: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.Turn)
	var skipped []string
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, skipped, fmt.Errorf("storage: scan history: %w", err)
		}
		turns, err := decodeTurns([]byte(raw))
		if err != nil {
			skipped = append(skipped, id)
			continue
		}
		out[id] = turns
	}
	if err := rows.Err(); err != nil {
		return nil, skipped, fmt.Errorf("storage: iterate histories: %w", err)
	}
	return out, skipped, nil
}

func (p *SQLitePersister) Save(ctx context.Context, sessionID string, turns []core.Turn) error {
	data, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO session_history (session_id, turns, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET turns = excluded.turns, updated_at = excluded.updated_at`,
		sessionID, string(data))
	if err != nil {
		return fmt.Errorf("storage: save history %s: %w", sessionID, err)
	}
	return nil
}

func (p *SQLitePersister) Delete(ctx context.Context, sessionID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM session_history WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("storage: delete history %s: %w", sessionID, err)
	}
	return nil
}

func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
