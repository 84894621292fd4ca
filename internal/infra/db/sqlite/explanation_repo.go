package sqlite

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/learncode/internal/domain/explanation"
	"github.com/bryanwahyu/learncode/internal/infra/db"
)

type ExplanationRepository struct {
	pool db.Pool
}

func NewExplanationRepository(pool db.Pool) *ExplanationRepository {
	return &ExplanationRepository{pool: pool}
}

func (r *ExplanationRepository) Get(ctx context.Context, k domain.Key) (*domain.Entry, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT explanation, created_at, updated_at
FROM topic_explanations
WHERE topic=? AND language=? AND framework=?`
	e := domain.Entry{Key: k}
	var created, updated int64
	err = conn.QueryRowContext(ctx, q, k.Topic, k.Language, k.FrameworkColumn()).
		Scan(&e.Explanation, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt = fromEpoch(created)
	e.UpdatedAt = fromEpoch(updated)
	return &e, nil
}

// Upsert overwrites the explanation on key conflict; last writer wins.
func (r *ExplanationRepository) Upsert(ctx context.Context, e *domain.Entry) error {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO topic_explanations
  (topic, language, framework, explanation, created_at, updated_at)
VALUES (?,?,?,?,?,?)
ON CONFLICT (topic, language, framework) DO UPDATE SET
  explanation=excluded.explanation,
  updated_at=excluded.updated_at`
	_, err = conn.ExecContext(ctx, q,
		e.Key.Topic, e.Key.Language, e.Key.FrameworkColumn(), e.Explanation,
		toEpoch(e.CreatedAt), toEpoch(e.UpdatedAt),
	)
	return err
}
