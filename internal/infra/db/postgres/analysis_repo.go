package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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
VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9);
`
	labels, err := db.EncodeLabels(a.Labels)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, q,
		string(a.ID), a.OwnerID, a.Code, a.Title, a.Language, db.NullString(a.Framework),
		a.LearningPath, labels, nowIfZero(a.CreatedAt),
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
SELECT id, owner_id, code, title, language, framework, learning_path, labels::text, created_at
FROM analyses
WHERE id=$1 AND owner_id IN (` + placeholders(2, len(ids)) + `) LIMIT 1;
`
	args := append([]any{string(id)}, db.OwnerArgs(ids)...)

	var a domain.Analysis
	var fw sql.NullString
	var labels string
	var created time.Time
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
	a.CreatedAt = created.UTC()
	return &a, nil
}

// List returns summaries ordered by created_at desc
func (r *AnalysisRepository) List(ctx context.Context, owner domain.Owner, f domain.Filter) ([]*domain.Summary, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids := owner.IDs()
	query := `
SELECT id, title, language, framework, labels::text, created_at
FROM analyses
WHERE owner_id IN (` + placeholders(1, len(ids)) + `)`
	args := db.OwnerArgs(ids)

	if f.Search != "" {
		args = append(args, db.ContainsPattern(f.Search))
		query += fmt.Sprintf(` AND title ILIKE $%d ESCAPE '\'`, len(args))
	}
	if f.Label != "" {
		args = append(args, f.Label)
		query += fmt.Sprintf(" AND labels @> jsonb_build_array($%d::text)", len(args))
	}
	args = append(args, f.PageSize, f.Offset())
	query += fmt.Sprintf("\nORDER BY created_at DESC, id DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	out := []*domain.Summary{}
	for rows.Next() {
		var s domain.Summary
		var fw sql.NullString
		var labels string
		if err := rows.Scan(&s.ID, &s.Title, &s.Language, &fw, &labels, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		s.Framework = db.StringPtr(fw)
		s.Labels = db.DecodeLabels(labels)
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// UpdateLabels replaces the labels of an owned record
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
	q := `
UPDATE analyses
SET labels = $1::jsonb
WHERE id = $2 AND owner_id IN (` + placeholders(3, len(ids)) + `);`
	args := append([]any{enc, string(id)}, db.OwnerArgs(ids)...)

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
