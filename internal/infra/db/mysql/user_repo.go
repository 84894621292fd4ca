package mysql

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

func (r *UserRepository) find(ctx context.Context, email, fid string) (*domain.User, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE email=? OR federated_id=?
ORDER BY (email=?) DESC
LIMIT 1;
`
	return scanUser(conn.QueryRowContext(ctx, q, email, fid, email))
}

// FindOrCreate matches on email or federated id, then refreshes the profile.
func (r *UserRepository) FindOrCreate(ctx context.Context, fi domain.FederatedIdentity) (*domain.User, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u, err := r.find(ctx, fi.Email, fi.Subject)
	switch {
	case err == nil:
		const q = `UPDATE users SET email=?, name=?, image=?, federated_id=?, updated_at=? WHERE id=?;`
		if _, err := conn.ExecContext(ctx, q, fi.Email, fi.Name, fi.Image, fi.Subject, now, u.ID); err != nil {
			return nil, err
		}
		u.Email, u.Name, u.Image, u.FederatedID, u.UpdatedAt = fi.Email, fi.Name, fi.Image, fi.Subject, now
		return u, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	const ins = `INSERT INTO users (` + userColumns + `) VALUES (?,?,?,?,?,?,?);`
	id := uuid.New().String()
	if _, err := conn.ExecContext(ctx, ins, id, fi.Email, fi.Name, fi.Image, fi.Subject, now, now); err != nil {
		// a concurrent first login may have inserted the same email
		if existing, ferr := r.find(ctx, fi.Email, fi.Subject); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	return &domain.User{
		ID: id, Email: fi.Email, Name: fi.Name, Image: fi.Image, FederatedID: fi.Subject,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (r *UserRepository) GetByFederatedID(ctx context.Context, fid string) (*domain.User, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE federated_id=? LIMIT 1;`
	return scanUser(conn.QueryRowContext(ctx, q, fid))
}
