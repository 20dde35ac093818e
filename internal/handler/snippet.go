package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/auth"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/search"
)

// SnippetService is what the handler needs from the service layer. *service.SnippetService
// satisfies it; tests pass a fake.
type SnippetService interface {
	Create(ctx context.Context, userID, title, content, language, sourceURL string) (*model.Snippet, error)
	Delete(ctx context.Context, id, userID string) error
	Search(ctx context.Context, userID, text, language string, limit, offset int) (*search.Result, error)
	List(ctx context.Context, userID string) ([]model.SnippetSummary, error)
}

// SnippetHandler serves the /api/snippets and /api/search endpoints. Every route sits behind
// auth.RequireAuth, so the user id always comes from the context, never from the request body.
type SnippetHandler struct {
	snippets SnippetService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// Pointers tell "missing" from "empty" so the messages can differ.
type createSnippetRequest struct {
	Title       *string `json:"title"`
	CodeContent *string `json:"code_content"`
	Language    string  `json:"language"`
	SourceURL   string  `json:"source_url"`
}

type listResponse struct {
	Count int                    `json:"count"`
	Data  []model.SnippetSummary `json:"data"`
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
// REQUEST BODY: {"title": "...", "code_content": "...", "language": "go", "source_url": "..."}
// RESPONSE: 201 {"message": "Snippet saved successfully", "id": "<uuid>"}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createSnippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateCreate(req); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), userID, *req.Title, *req.CodeContent, req.Language, req.SourceURL)
	if err != nil {
		h.logFailure("create snippet", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Snippet saved successfully", ID: snippet.ID})
}

// HandleSearch runs a fuzzy search over the caller's snippets.
//
// HTTP: GET /api/search?q=sort&language=go&limit=20&offset=0
func (h *SnippetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	language := query.Get("language")
	if err := validateSearch(q, language, query.Has("q")); err != nil {
		writeError(w, err)
		return
	}

	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(query.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.snippets.Search(r.Context(), userID, q, language, limit, offset)
	if err != nil {
		h.logFailure("search snippets", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleList returns the caller's snippets, newest first, straight from the primary store.
//
// HTTP: GET /api/snippets
// RESPONSE: {"count": 2, "data": [{"id": "...", "title": "...", "language": "go", "created_at": "..."}]}
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	snippets, err := h.snippets.List(r.Context(), userID)
	if err != nil {
		h.logFailure("list snippets", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Count: len(snippets), Data: snippets})
}

// HandleDelete removes one of the caller's snippets.
//
// HTTP: DELETE /api/snippets/{id}
//
// An id that is not a UUID cannot name any snippet, so it gets the same 404 as a snippet that
// belongs to someone else.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, apperror.NotFoundOrUnauthorized())
		return
	}

	if err := h.snippets.Delete(r.Context(), id, userID); err != nil {
		h.logFailure("delete snippet", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Snippet deleted successfully"})
}

// userID reads the id RequireAuth stored. Missing means the route was mounted without the
// middleware.
func (h *SnippetHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.logger.Error("snippet route reached without authentication", slog.String("path", r.URL.Path))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Status:  "error",
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return "", false
	}
	return userID, true
}

// logFailure logs server-side failures. Client errors (validation, not found) are not logged.
func (h *SnippetHandler) logFailure(op, userID string, err error) {
	if isClientError(err) {
		return
	}
	h.logger.Error(op+" failed",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}

func isClientError(err error) bool {
	for _, kind := range []error{
		apperror.ErrValidation,
		apperror.ErrNotFound,
		apperror.ErrNotFoundOrUnauthorized,
		apperror.ErrIntegrityViolation,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// intParam parses an optional integer query parameter. Empty means 0; range clamping is left to
// search.Build.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, "Validation Error: "+name+": must be a number")
	}
	return n, nil
}
