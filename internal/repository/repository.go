// Package repository declares the primary store contracts. The primary store is the single source
// of truth for snippets: a snippet exists if and only if its row exists.
//
// Implementations live in sub-packages (postgres for production, sqlite for local development).
// Both classify failures the same way:
//   - apperror.ErrIntegrityViolation for constraint breaches (unknown user_id, duplicate email)
//   - apperror.ErrStoreUnavailable for everything else (connection refused, timeouts, driver errors)
package repository

import (
	"context"

	"github.com/sakif/snippet-search/internal/model"
)

type SnippetRepository interface {
	// Insert stores a new snippet and fills in snippet.ID and snippet.CreatedAt.
	Insert(ctx context.Context, snippet *model.Snippet) error
	// DeleteOwned removes the snippet only if it belongs to userID and reports whether a row
	// was removed.
	DeleteOwned(ctx context.Context, id, userID string) (bool, error)
	// ListByUser returns the user's snippets, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.SnippetSummary, error)
	Ping(ctx context.Context) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
