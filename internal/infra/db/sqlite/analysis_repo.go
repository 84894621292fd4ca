package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/learncode/internal/domain/analysis"
	"github.com/bryanwahyu/learncode/internal/infra/db"
)

type AnalysisRepository struct {
	pool db.Pool
}

func NewAnalysisRepository(pool db.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

// Save inserts an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Analysis) error {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO analyses
  (id, owner_id, code, title, language, framework, learning_path, labels, created_at)
VALUES (?,?,?,?,?,?,?,?,?)`
	labels, err := db.EncodeLabels(a.Labels)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, q,
		a.ID, a.OwnerID, a.Code, a.Title, a.Language, db.NullString(a.Framework),
		a.LearningPath, labels, toEpoch(a.CreatedAt),
	)
	return err
}

// Get by ID, limited to records the owner may see
func (r *AnalysisRepository) Get(ctx context.Context, id domain.ID, owner domain.Owner) (*domain.Analysis, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids := owner.IDs()
	q := `
SELECT id, owner_id, code, title, language, framework, learning_path, labels, created_at
FROM analyses
WHERE id=? AND owner_id IN (` + placeholders(len(ids)) + `) LIMIT 1`
	args := append([]any{id}, db.OwnerArgs(ids)...)

	var a domain.Analysis
	var fw sql.NullString
	var labels string
	var created int64
	err = conn.QueryRowContext(ctx, q, args...).Scan(
		&a.ID, &a.OwnerID, &a.Code, &a.Title, &a.Language, &fw, &a.LearningPath, &labels, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Framework = db.StringPtr(fw)
	a.Labels = db.DecodeLabels(labels)
	a.CreatedAt = fromEpoch(created)
	return &a, nil
}

// List returns summaries newest first
func (r *AnalysisRepository) List(ctx context.Context, owner domain.Owner, f domain.Filter) ([]*domain.Summary, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids := owner.IDs()
	q := `
SELECT id, title, language, framework, labels, created_at
FROM analyses
WHERE owner_id IN (` + placeholders(len(ids)) + `)`
	args := db.OwnerArgs(ids)

	if f.Search != "" {
		q += ` AND unicode_lower(title) LIKE ? ESCAPE '\'`
		args = append(args, db.ContainsPattern(f.Search))
	}
	if f.Label != "" {
		q += ` AND EXISTS (SELECT 1 FROM json_each(analyses.labels) WHERE json_each.value = ?)`
		args = append(args, f.Label)
	}
	q += "\nORDER BY created_at DESC, id DESC\nLIMIT ? OFFSET ?"
	args = append(args, f.PageSize, f.Offset())

	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	out := []*domain.Summary{}
	for rows.Next() {
		var s domain.Summary
		var fw sql.NullString
		var labels string
		var created int64
		if err := rows.Scan(&s.ID, &s.Title, &s.Language, &fw, &labels, &created); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		s.Framework = db.StringPtr(fw)
		s.Labels = db.DecodeLabels(labels)
		s.CreatedAt = fromEpoch(created)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// UpdateLabels replaces the label column of an owned record
func (r *AnalysisRepository) UpdateLabels(ctx context.Context, id domain.ID, owner domain.Owner, labels []string) ([]string, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	enc, err := db.EncodeLabels(labels)
	if err != nil {
		return nil, err
	}
	ids := owner.IDs()
	q := `UPDATE analyses SET labels=? WHERE id=? AND owner_id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{enc, id}, db.OwnerArgs(ids)...)

	res, err := conn.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}
	return db.DecodeLabels(enc), nil
}
