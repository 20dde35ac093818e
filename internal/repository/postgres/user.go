package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/repository"
)

const (
	insertUser  = `INSERT INTO users (id, email) VALUES ($1, $2) RETURNING created_at`
	getUserByID = `SELECT id, email, created_at FROM users WHERE id = $1`
)

var _ repository.UserRepository = (*DB)(nil)

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = uuid.NewString()
	if err := db.conn.QueryRowContext(ctx, insertUser, user.ID, user.Email).Scan(&user.CreatedAt); err != nil {
		return classify("creating user", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := db.conn.QueryRowContext(ctx, getUserByID, id).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, classify("getting user", err)
	}
	return &user, nil
}
