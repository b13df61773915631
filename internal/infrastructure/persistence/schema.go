package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
    id             TEXT PRIMARY KEY,
    receiver_key   TEXT NOT NULL,
    receiver_email TEXT NOT NULL DEFAULT '',
    type           TEXT NOT NULL,
    content        TEXT NOT NULL,
    url            TEXT NOT NULL DEFAULT '',
    is_read        INTEGER NOT NULL DEFAULT 0,
    -- unix millis
    created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_receiver
    ON notifications(receiver_key, created_at DESC);
`

// Open connects to the sqlite database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A :memory: database lives on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
