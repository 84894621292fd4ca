// Package sqlite implements the stores on SQLite for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
)

// SQLite's built-in LOWER folds ASCII only; title search needs the same
// folding strings.ToLower applies to the search term.
func init() {
	msqlite.MustRegisterDeterministicScalarFunction("unicode_lower", 1, unicodeLower)
}

func unicodeLower(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Connect opens path (":memory:" for a throwaway database) and applies the schema.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	if err := Migrate(ctx2, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id           TEXT PRIMARY KEY,
  email        TEXT NOT NULL UNIQUE,
  name         TEXT NOT NULL DEFAULT '',
  image        TEXT NOT NULL DEFAULT '',
  federated_id TEXT UNIQUE,
  created_at   INTEGER NOT NULL,
  updated_at   INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS analyses (
  id            TEXT PRIMARY KEY,
  owner_id      TEXT NOT NULL,
  code          TEXT NOT NULL,
  title         TEXT NOT NULL,
  language      TEXT NOT NULL,
  framework     TEXT,
  learning_path TEXT NOT NULL,
  labels        TEXT NOT NULL DEFAULT '[]',
  created_at    INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_owner_created ON analyses (owner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS topic_explanations (
  topic       TEXT NOT NULL,
  language    TEXT NOT NULL,
  framework   TEXT NOT NULL DEFAULT '',
  explanation TEXT NOT NULL,
  created_at  INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL,
  PRIMARY KEY (topic, language, framework)
)`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func toEpoch(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}

func fromEpoch(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
