package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrogrim/stockpile/internal/domain/user"
)

const userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

var _ user.Lookup = (*UserRepository)(nil)

// UserRepository implements user.Lookup backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Exists reports whether a user with the given id is present.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, userExistsSQL, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user %q: %w", id, err)
	}
	return exists, nil
}
