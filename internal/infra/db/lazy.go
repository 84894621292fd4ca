// Package db holds what the SQL adapters share: lazy connection acquisition
// and column codecs.
package db

import (
	"context"
	"database/sql"
	"sync"
)

// OpenFunc opens and verifies a connection pool.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// Lazy acquires a pool on first use and hands the same pool to every later
// caller. A failed open is not cached, so the next Get tries again.
type Lazy struct {
	mu   sync.Mutex
	open OpenFunc
	db   *sql.DB
}

func NewLazy(open OpenFunc) *Lazy {
	return &Lazy{open: open}
}

func (l *Lazy) Get(ctx context.Context) (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db != nil {
		return l.db, nil
	}
	db, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.db = db
	return db, nil
}

// Check implements middleware.HealthChecker.
func (l *Lazy) Check(ctx context.Context) error {
	db, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the pool if it was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// Pool hands out the shared connection pool. *Lazy implements it; Fixed wraps
// an already open pool.
type Pool interface {
	Get(ctx context.Context) (*sql.DB, error)
}

// Fixed is a Pool over an open *sql.DB.
type Fixed struct{ DB *sql.DB }

func (f Fixed) Get(context.Context) (*sql.DB, error) { return f.DB, nil }
