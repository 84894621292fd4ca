package mysql

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
WHERE topic=? AND language=? AND framework=? LIMIT 1;
`
	e := domain.Entry{Key: k}
	err = conn.QueryRowContext(ctx, q, k.Topic, k.Language, k.FrameworkColumn()).
		Scan(&e.Explanation, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
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
ON DUPLICATE KEY UPDATE
  explanation=VALUES(explanation), updated_at=VALUES(updated_at);
`
	_, err = conn.ExecContext(ctx, q,
		e.Key.Topic, e.Key.Language, e.Key.FrameworkColumn(), e.Explanation,
		nowIfZero(e.CreatedAt), nowIfZero(e.UpdatedAt),
	)
	return err
}
