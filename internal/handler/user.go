package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/snippet-search/internal/auth"
	"github.com/sakif/snippet-search/internal/service"
)

type UserRegistrar interface {
	Register(ctx context.Context, email string) (*service.RegisterResult, error)
}

// UserHandler registers users. Registration is open; the returned token is the caller's only
// credential, there is no login.
type UserHandler struct {
	users    UserRegistrar
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewUserHandler(users UserRegistrar, tokenTTL time.Duration, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, tokenTTL: tokenTTL, logger: logger}
}

type registerRequest struct {
	Email string `json:"email"`
}

type registerResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Token     string    `json:"token"`
}

// HandleRegister creates a user and issues its first token.
//
// HTTP: POST /users
// REQUEST BODY: {"email": "dev@example.com"}
// RESPONSE: 201 {"id": "...", "email": "...", "created_at": "...", "token": "<jwt>"}
//
// The token is also set as an HttpOnly cookie so a browser client is signed in right away.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateEmail(req.Email); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.users.Register(r.Context(), req.Email)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("register user failed", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:        res.User.ID,
		Email:     res.User.Email,
		CreatedAt: res.User.CreatedAt,
		Token:     res.Token,
	})
}
