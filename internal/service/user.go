package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snippet-search/internal/auth"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/repository"
)

// UserService registers users and issues their tokens. Snippets only ever see the user id.
type UserService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, logger: logger}
}

type RegisterResult struct {
	User  *model.User
	Token string
}

// Register creates a user. Emails are stored lowercased; registering the same address twice
// fails with IntegrityViolation.
func (s *UserService) Register(ctx context.Context, email string) (*RegisterResult, error) {
	user := &model.User{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: registering %s: %w", user.Email, err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %s: %w", user.ID, err)
	}

	return &RegisterResult{User: user, Token: token}, nil
}

// IssueToken signs a token for an existing user. A zero ttl uses the service default.
func (s *UserService) IssueToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service/user: looking up user %s: %w", userID, err)
	}
	if ttl <= 0 {
		return s.tokens.Generate(user.ID)
	}
	return s.tokens.GenerateWithDuration(user.ID, ttl)
}
