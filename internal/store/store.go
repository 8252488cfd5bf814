// Package store provides read access to the GoodLinks SQLite database.
//
// The database is owned by the GoodLinks app and is strictly read-only from
// this system's perspective. This package exposes the one query the sync
// engine needs: highlights committed after a watermark, ascending by commit
// time, joined with their parent link's metadata.
//
// GoodLinks schema (relevant subset):
//   - link(id TEXT PRIMARY KEY, url TEXT, title TEXT, author TEXT)
//   - highlight(id TEXT PRIMARY KEY, linkId TEXT, content TEXT,
//     note TEXT, time REAL, color TEXT)
//
// highlight.time is a fractional Unix timestamp assigned once at creation,
// which is what makes it usable as the sync watermark.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hlsync/hlsync/internal/highlight"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrSourceUnavailable marks failures to open or query the source database.
// These are fatal for a run: no partial processing happens after one.
var ErrSourceUnavailable = errors.New("source database unavailable")

// DB wraps the SQLite connection to the GoodLinks database.
type DB struct {
	conn *sql.DB
	path string
}

// Open connects to the GoodLinks database at the specified path, read-only.
//
// The database belongs to the GoodLinks app, so the handle must not be able
// to mutate it: the connection is opened with mode=ro and query_only set,
// and a missing file is an error rather than a silently created empty
// database. A busy timeout covers the case where GoodLinks itself holds a
// write lock. The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	db, err := open(path, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	if _, err := db.conn.Exec("PRAGMA query_only=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to set query_only: %v", ErrSourceUnavailable, err)
	}
	return db, nil
}

// OpenWritable connects to the database read-write, creating the file if it
// does not exist. Tests and local fixtures use it together with InitSchema
// and the insert helpers; production reads through Open.
func OpenWritable(path string) (*DB, error) {
	return open(path, fmt.Sprintf("file:%s", path))
}

func open(path, connStr string) (*DB, error) {
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrSourceUnavailable, path, err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping %s: %v", ErrSourceUnavailable, path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to set busy timeout: %v", ErrSourceUnavailable, err)
	}

	return &DB{conn: conn, path: path}, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path this connection was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

const selectColumns = `h.id, h.linkId, h.content, h.note, h.time, h.color,
       l.url, l.title, l.author`

// FetchSince returns highlights with a commit time strictly greater than
// since, joined with their link metadata, ascending by commit time. A nil
// since means the full history.
//
// The ascending order is load-bearing: the orchestrator advances the
// watermark to the commit time of the last returned record, so the last
// element must carry the maximum commit time of the result.
func (db *DB) FetchSince(ctx context.Context, since *float64) ([]highlight.Record, error) {
	query := `
	SELECT ` + selectColumns + `
	FROM highlight h
	JOIN link l ON h.linkId = l.id
	`
	var args []interface{}
	if since != nil {
		query += "WHERE h.time > ?\n"
		args = append(args, *since)
	}
	query += "ORDER BY h.time ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query highlights: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountSince returns the number of highlights newer than since.
func (db *DB) CountSince(ctx context.Context, since *float64) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM highlight h
	JOIN link l ON h.linkId = l.id
	`
	var args []interface{}
	if since != nil {
		query += "WHERE h.time > ?"
		args = append(args, *since)
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count highlights: %v", ErrSourceUnavailable, err)
	}
	return count, nil
}

// scanRecords scans joined highlight rows into records.
func scanRecords(rows *sql.Rows) ([]highlight.Record, error) {
	var records []highlight.Record

	for rows.Next() {
		var rec highlight.Record
		var note, color, url, title, author sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.LinkID,
			&rec.Text,
			&note,
			&rec.CommittedAt,
			&color,
			&url,
			&title,
			&author,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan highlight: %v", ErrSourceUnavailable, err)
		}

		rec.Note = nullStringToPtr(note)
		rec.Color = nullStringToPtr(color)
		rec.SourceURL = nullStringToPtr(url)
		rec.Title = nullStringToPtr(title)
		rec.Author = nullStringToPtr(author)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating highlights: %v", ErrSourceUnavailable, err)
	}

	return records, nil
}

// nullStringToPtr converts a nullable SQL string to an optional field.
func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
