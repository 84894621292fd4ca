package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/learncode/internal/domain/user"
	"github.com/bryanwahyu/learncode/internal/infra/db"
)

type UserRepository struct {
	pool db.Pool
}

func NewUserRepository(pool db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, name, image, federated_id, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var fid sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &fid, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.FederatedID = fid.String
	return &u, nil
}

// FindOrCreate matches on email or federated id, then refreshes the profile.
// A new user is inserted with ON CONFLICT (email) so concurrent first logins
// converge on one row.
func (r *UserRepository) FindOrCreate(ctx context.Context, fi domain.FederatedIdentity) (*domain.User, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	const find = `
SELECT ` + userColumns + `
FROM users
WHERE email=$1 OR federated_id=$2
ORDER BY (email=$1) DESC
LIMIT 1;
`
	u, err := scanUser(conn.QueryRowContext(ctx, find, fi.Email, fi.Subject))
	switch {
	case err == nil:
		const q = `UPDATE users SET email=$1, name=$2, image=$3, federated_id=$4, updated_at=$5 WHERE id=$6;`
		if _, err := conn.ExecContext(ctx, q, fi.Email, fi.Name, fi.Image, fi.Subject, now, u.ID); err != nil {
			return nil, err
		}
		u.Email, u.Name, u.Image, u.FederatedID, u.UpdatedAt = fi.Email, fi.Name, fi.Image, fi.Subject, now
		return u, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	const ins = `
INSERT INTO users (` + userColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$6)
ON CONFLICT (email) DO UPDATE SET
  name=EXCLUDED.name, image=EXCLUDED.image, federated_id=EXCLUDED.federated_id, updated_at=EXCLUDED.updated_at
RETURNING ` + userColumns + `;
`
	return scanUser(conn.QueryRowContext(ctx, ins, uuid.New().String(), fi.Email, fi.Name, fi.Image, fi.Subject, now))
}

func (r *UserRepository) GetByFederatedID(ctx context.Context, fid string) (*domain.User, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE federated_id=$1 LIMIT 1;`
	return scanUser(conn.QueryRowContext(ctx, q, fid))
}
