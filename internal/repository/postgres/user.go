package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const userSelect = `
	SELECT id, email, password_hash, first_name, last_name, role, status,
		   is_active, created_at, updated_at
	FROM users
`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{NewBaseRepository(db)}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.get(ctx, &user, userSelect+` WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.get(ctx, &user, userSelect+` WHERE LOWER(email) = $1`, strings.ToLower(email)); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}
