package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a user and fills in user.ID and user.CreatedAt.
// A duplicate email surfaces as apperror.ErrIntegrityViolation (UNIQUE constraint).
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Email, user.CreatedAt,
	)
	if err != nil {
		return classify("creating user", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		// database/sql returns the sentinel unwrapped, == is enough.
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, classify("getting user", err)
	}
	return &user, nil
}
