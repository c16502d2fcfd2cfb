// Package sqlite implements the repository interfaces on top of SQLite.
//
// It uses modernc.org/sqlite, a pure Go translation of SQLite, through
// database/sql. One *DB value implements every repository interface in
// internal/repository.
package sqlite

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

func init() {
	moderncsqlite.MustRegisterDeterministicScalarFunction("casefold", 1, casefold)
}

// casefold lower-cases its argument with Go's Unicode tables. SQLite's own
// lower() and LIKE only fold ASCII, so "Éclair" would never match "éclair".
func casefold(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("casefold: unsupported argument type %T", v)
	}
}

// connPragmas are applied by the driver to every pooled connection, so
// foreign keys and the busy timeout hold no matter which connection a query
// lands on. _time_format=sqlite stores timestamps as
// "2006-01-02 15:04:05.999999999-07:00", which sorts correctly as text.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/catgram.db" → file-based database
//   - ":memory:"        → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&" + connPragmas
	} else {
		dsn += "?" + connPragmas
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate empty database.
	if strings.HasPrefix(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := newFromConn(conn)

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// newFromConn wraps an already-open pool without migrating it. Tests use it
// with go-sqlmock.
func newFromConn(conn *sql.DB) *DB {
	return &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

type migration struct {
	name string
	sql  string
}

// migrations are idempotent and run in order on every start.
var migrations = []migration{
	{"identities table", `
		CREATE TABLE IF NOT EXISTS identities (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`},
	{"profiles table", `
		CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY REFERENCES identities(id),
			username   TEXT NOT NULL,
			bio        TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`},
	{"posts table", `
		CREATE TABLE IF NOT EXISTS posts (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			content     TEXT NOT NULL DEFAULT '',
			image_url   TEXT NOT NULL DEFAULT '',
			user_id     TEXT NOT NULL REFERENCES identities(id),
			author_name TEXT NOT NULL DEFAULT '',
			upvotes     INTEGER NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_upvotes ON posts(upvotes);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);`},
	{"comments table", `
		CREATE TABLE IF NOT EXISTS comments (
			id          TEXT PRIMARY KEY,
			content     TEXT NOT NULL,
			post_id     TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id     TEXT NOT NULL REFERENCES identities(id),
			author_name TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_comments_user_id ON comments(user_id);`},
	{"posts_with_profiles view", `
		CREATE VIEW IF NOT EXISTS posts_with_profiles AS
		SELECT p.id, p.title, p.content, p.image_url, p.user_id, p.author_name,
		       p.upvotes, p.created_at, p.updated_at,
		       COALESCE(pr.username, '') AS username
		FROM posts p
		LEFT JOIN profiles pr ON pr.id = p.user_id;`},
	{"comments_with_profiles view", `
		CREATE VIEW IF NOT EXISTS comments_with_profiles AS
		SELECT c.id, c.content, c.post_id, c.user_id, c.author_name, c.created_at,
		       COALESCE(pr.username, '') AS username
		FROM comments c
		LEFT JOIN profiles pr ON pr.id = c.user_id;`},
}

func (db *DB) migrate() error {
	for _, m := range migrations {
		if _, err := db.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("creating %s: %w", m.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// primary result code only; fall back to the message
		msg := sqliteErr.Error()
		return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "PRIMARY KEY")
	}
	return false
}

// checkAffected turns a zero-row UPDATE/DELETE into the given error.
func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// nullInt64 maps the zero value to SQL NULL.
func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
