package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/auth"
)

func newTestUserService(t *testing.T) (*UserService, *fakeRepo, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16", time.Hour)
	require.NoError(t, err)
	repo := newFakeRepo()
	return NewUserService(repo, tokens, quietLogger()), repo, tokens
}

func TestRegister(t *testing.T) {
	svc, _, tokens := newTestUserService(t)

	res, err := svc.Register(context.Background(), "  Dev@Example.com ")
	require.NoError(t, err)

	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, "dev@example.com", res.User.Email)

	sub, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sub)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dev@example.com")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "DEV@example.com")

	assert.ErrorIs(t, err, apperror.ErrIntegrityViolation)
}

func TestIssueToken(t *testing.T) {
	svc, repo, tokens := newTestUserService(t)
	userID := repo.addUser("dev@example.com")

	token, err := svc.IssueToken(context.Background(), userID, 5*time.Minute)
	require.NoError(t, err)

	sub, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, sub)
}

func TestIssueToken_UnknownUser(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	_, err := svc.IssueToken(context.Background(), "missing", 0)

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
