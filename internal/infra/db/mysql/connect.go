package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	if err := Migrate(ctx2, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql migrate: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id           VARCHAR(64)   NOT NULL PRIMARY KEY,
  email        VARCHAR(255)  COLLATE utf8mb4_bin NOT NULL,
  name         VARCHAR(255)  NOT NULL DEFAULT '',
  image        VARCHAR(1024) NOT NULL DEFAULT '',
  federated_id VARCHAR(255)  COLLATE utf8mb4_bin NULL,
  created_at   DATETIME(3)   NOT NULL,
  updated_at   DATETIME(3)   NOT NULL,
  UNIQUE KEY uq_users_email (email),
  UNIQUE KEY uq_users_federated (federated_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS analyses (
  id            CHAR(36)     NOT NULL PRIMARY KEY,
  owner_id      VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
  code          TEXT         NOT NULL,
  title         VARCHAR(255) NOT NULL,
  language      VARCHAR(100) NOT NULL,
  framework     VARCHAR(100) NULL,
  learning_path TEXT         NOT NULL,
  labels        JSON         NOT NULL,
  created_at    DATETIME(3)  NOT NULL,
  KEY idx_analyses_owner_created (owner_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS topic_explanations (
  topic       VARCHAR(200) COLLATE utf8mb4_bin NOT NULL,
  language    VARCHAR(100) COLLATE utf8mb4_bin NOT NULL,
  framework   VARCHAR(100) COLLATE utf8mb4_bin NOT NULL DEFAULT '',
  explanation TEXT         NOT NULL,
  created_at  DATETIME(3)  NOT NULL,
  updated_at  DATETIME(3)  NOT NULL,
  PRIMARY KEY (topic, language, framework)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// exactColumns must compare byte for byte; the server default collation
// folds case and accents.
var exactColumns = []struct{ table, column, def string }{
	{"users", "email", "VARCHAR(255) COLLATE utf8mb4_bin NOT NULL"},
	{"users", "federated_id", "VARCHAR(255) COLLATE utf8mb4_bin NULL"},
	{"analyses", "owner_id", "VARCHAR(255) COLLATE utf8mb4_bin NOT NULL"},
	{"topic_explanations", "topic", "VARCHAR(200) COLLATE utf8mb4_bin NOT NULL"},
	{"topic_explanations", "language", "VARCHAR(100) COLLATE utf8mb4_bin NOT NULL"},
	{"topic_explanations", "framework", "VARCHAR(100) COLLATE utf8mb4_bin NOT NULL DEFAULT ''"},
}

// Migrate creates missing tables and fixes key column collation on tables
// created before it was pinned.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	const q = `
SELECT COUNT(*) FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ? AND COLLATION_NAME <> 'utf8mb4_bin'`
	for _, c := range exactColumns {
		var n int
		if err := db.QueryRowContext(ctx, q, c.table, c.column).Scan(&n); err != nil {
			return fmt.Errorf("checking %s.%s collation: %w", c.table, c.column, err)
		}
		if n == 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, alterColumn(c.table, c.column, c.def)); err != nil {
			return fmt.Errorf("altering %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

func alterColumn(table, column, def string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY %s %s", table, column, def)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
