package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hlsync/hlsync/internal/highlight"
)

// InitSchema creates the GoodLinks tables this package reads from.
//
// Production never calls this: the schema belongs to the GoodLinks app.
// It exists for tests and local fixtures, and is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS link (
		id TEXT PRIMARY KEY,
		url TEXT,
		title TEXT,
		author TEXT
	);

	CREATE TABLE IF NOT EXISTS highlight (
		id TEXT PRIMARY KEY,
		linkId TEXT NOT NULL,
		content TEXT NOT NULL,
		note TEXT,
		time REAL NOT NULL,
		color TEXT,
		FOREIGN KEY (linkId) REFERENCES link(id)
	);

	CREATE INDEX IF NOT EXISTS idx_highlight_time ON highlight(time);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// InsertLink inserts a link row. Fixture helper.
func (db *DB) InsertLink(ctx context.Context, id string, url, title, author *string) error {
	query := `INSERT INTO link (id, url, title, author) VALUES (?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, query, id,
		ptrToNullString(url), ptrToNullString(title), ptrToNullString(author))
	if err != nil {
		return fmt.Errorf("failed to insert link %s: %w", id, err)
	}
	return nil
}

// InsertHighlight inserts a highlight row. Fixture helper.
func (db *DB) InsertHighlight(ctx context.Context, rec highlight.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid highlight: %w", err)
	}

	query := `INSERT INTO highlight (id, linkId, content, note, time, color)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.LinkID,
		rec.Text,
		ptrToNullString(rec.Note),
		rec.CommittedAt,
		ptrToNullString(rec.Color),
	)
	if err != nil {
		return fmt.Errorf("failed to insert highlight %s: %w", rec.ID, err)
	}
	return nil
}

// ptrToNullString converts an optional field to a nullable SQL string.
func ptrToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}
