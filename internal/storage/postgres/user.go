package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadito/shop-api/internal/domain/user"
)

const getUserByIDSQL = `SELECT id, name, email, is_admin FROM users WHERE id = $1`

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID looks up a user. Returns user.ErrNotFound when absent.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx, getUserByIDSQL, id).Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %q: %w", id, err)
	}
	return &u, nil
}
