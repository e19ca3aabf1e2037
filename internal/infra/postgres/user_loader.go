package postgres

import (
	"context"
	"errors"
	"fmt"

	"live-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// UserLoader loads user records from Postgres.
type UserLoader struct {
	pool *pgxpool.Pool
}

func NewUserLoader(pool *pgxpool.Pool) *UserLoader {
	return &UserLoader{pool: pool}
}

func (l *UserLoader) LoadUser(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := l.pool.QueryRow(ctx,
		`SELECT id, username, profile_picture, is_admin FROM users WHERE id=$1`, userID,
	).Scan(&user.ID, &user.Username, &user.ProfilePicture, &user.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.NotFoundf("user %s not found", userID)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
