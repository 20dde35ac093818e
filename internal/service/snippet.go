// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, validates their shape, writes responses
//	Service (Business layer) → keeps the primary store and the search index consistent
//	Repository / Index       → reads/writes one store each
//
// The primary store is the source of truth. The search index is a projection of it: the create
// path undoes the primary write when the projection fails, the delete path records failed
// projections in the reconciliation queue instead of failing the request.
//
// DEPENDENCY INJECTION:
// SnippetService takes interfaces (repository.SnippetRepository, search.Index, reconcile.Queue),
// never concrete clients. Tests pass in-memory fakes (see fakes_test.go).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/metrics"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/reconcile"
	"github.com/sakif/snippet-search/internal/repository"
	"github.com/sakif/snippet-search/internal/search"
)

type SnippetService struct {
	repo    repository.SnippetRepository
	index   search.Index
	queue   reconcile.Queue
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewSnippetService(
	repo repository.SnippetRepository,
	index search.Index,
	queue reconcile.Queue,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SnippetService {
	return &SnippetService{
		repo:    repo,
		index:   index,
		queue:   queue,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Create saves a snippet in the primary store and makes it searchable before returning.
//
// Outcomes:
//   - insert fails: the store error (StoreUnavailable, IntegrityViolation), nothing was written
//   - indexing fails, rollback succeeds: SearchSyncFailed, nothing was written. An index write
//     can land and still report failure, so the document is deleted too, or queued for deletion
//   - indexing and rollback fail: CriticalInconsistency, the row exists but is not searchable;
//     a purge work item is queued for the reconciler
//
// Input is assumed valid; the handler checks lengths.
func (s *SnippetService) Create(ctx context.Context, userID, title, content, language, sourceURL string) (*model.Snippet, error) {
	snippet, err := writeThenProject(ctx,
		func(ctx context.Context) (*model.Snippet, error) {
			snippet := &model.Snippet{
				UserID:      userID,
				Title:       title,
				CodeContent: content,
				Language:    language,
				SourceURL:   sourceURL,
			}
			if err := s.repo.Insert(ctx, snippet); err != nil {
				return nil, err
			}
			return snippet, nil
		},
		func(ctx context.Context, snippet *model.Snippet) error {
			return s.index.IndexDocument(ctx, documentFor(snippet), true)
		},
		func(ctx context.Context, snippet *model.Snippet) error {
			deleted, err := s.repo.DeleteOwned(ctx, snippet.ID, snippet.UserID)
			if err != nil {
				return err
			}
			if !deleted {
				return errNothingCompensated
			}
			return nil
		},
	)

	var failure *projectionFailure
	switch {
	case err == nil:
		s.logger.Info("snippet created",
			slog.String("snippet_id", snippet.ID),
			slog.String("user_id", userID),
		)
		return snippet, nil

	case errors.As(err, &failure) && failure.compensateErr == nil:
		s.metrics.Compensations.WithLabelValues("ok").Inc()
		s.logger.Warn("search sync failed, snippet rolled back",
			slog.String("snippet_id", snippet.ID),
			slog.String("user_id", userID),
			slog.String("error", failure.projectErr.Error()),
		)
		s.dropOrphanDocument(ctx, snippet.ID, userID, failure.projectErr)
		return nil, apperror.SearchSyncFailed(failure.projectErr)

	case errors.As(err, &failure):
		s.metrics.Compensations.WithLabelValues("failed").Inc()
		s.metrics.CriticalInconsistencies.Inc()
		s.logger.Error("snippet persisted but not searchable and rollback failed",
			slog.String("severity", "critical"),
			slog.String("snippet_id", snippet.ID),
			slog.String("user_id", userID),
			slog.String("index_error", failure.projectErr.Error()),
			slog.String("rollback_error", failure.compensateErr.Error()),
		)
		s.enqueue(ctx, reconcile.OpPurge, snippet.ID, userID, failure.compensateErr)
		return nil, apperror.CriticalInconsistency(snippet.ID, failure)

	default:
		return nil, err
	}
}

// Delete removes the user's snippet. Success is decided by the primary store alone: once the row
// is gone the call succeeds, and a failed index deletion becomes a work item for the reconciler.
//
// A snippet that does not exist and a snippet owned by someone else both give
// NotFoundOrUnauthorized, so a caller cannot probe for other users' ids.
func (s *SnippetService) Delete(ctx context.Context, id, userID string) error {
	deleted, err := s.repo.DeleteOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFoundOrUnauthorized()
	}

	err = s.index.DeleteDocument(ctx, id, true)
	switch {
	case err == nil, errors.Is(err, apperror.ErrDocumentNotFound):
		s.logger.Info("snippet deleted",
			slog.String("snippet_id", id),
			slog.String("user_id", userID),
		)
	default:
		s.logger.Warn("index delete failed, queued for reconciliation",
			slog.String("snippet_id", id),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.enqueue(ctx, reconcile.OpDelete, id, userID, err)
	}
	return nil
}

// Search runs a fuzzy full-text search over the user's own snippets, best match first.
func (s *SnippetService) Search(ctx context.Context, userID, text, language string, limit, offset int) (*search.Result, error) {
	q, err := search.Build(search.Request{
		UserID:   userID,
		Text:     text,
		Language: language,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/snippet: %w", err)
	}
	return s.index.Search(ctx, q)
}

// List returns the user's snippets newest first. It reads the primary store only, so it reflects
// creates and deletes immediately.
func (s *SnippetService) List(ctx context.Context, userID string) ([]model.SnippetSummary, error) {
	return s.repo.ListByUser(ctx, userID)
}

// dropOrphanDocument removes the document of a rolled-back snippet. Usually there is none.
func (s *SnippetService) dropOrphanDocument(ctx context.Context, id, userID string, cause error) {
	err := s.index.DeleteDocument(context.WithoutCancel(ctx), id, true)
	if err == nil || errors.Is(err, apperror.ErrDocumentNotFound) {
		return
	}
	s.logger.Warn("orphan document delete failed, queued for reconciliation",
		slog.String("snippet_id", id),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	s.enqueue(ctx, reconcile.OpDelete, id, userID, cause)
}

// enqueue records a work item. It never fails the request: if the queue is down too, the ERROR
// record below is the only trace left and the metric is what alerts on it.
func (s *SnippetService) enqueue(ctx context.Context, op reconcile.Operation, snippetID, userID string, cause error) {
	item := reconcile.NewWorkItem(op, snippetID, userID, cause, s.now())

	if err := s.queue.Enqueue(context.WithoutCancel(ctx), item); err != nil {
		s.metrics.EnqueueFailures.WithLabelValues(string(op)).Inc()
		s.logger.Error("reconciliation enqueue failed",
			slog.String("operation", string(op)),
			slog.String("snippet_id", snippetID),
			slog.String("user_id", userID),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.metrics.WorkItemsEnqueued.WithLabelValues(string(op)).Inc()
	s.logger.Info("work item enqueued",
		slog.String("item_id", item.ID),
		slog.String("operation", string(op)),
		slog.String("snippet_id", snippetID),
	)
}

func documentFor(snippet *model.Snippet) search.Document {
	return search.Document{
		SnippetID:   snippet.ID,
		UserID:      snippet.UserID,
		Title:       snippet.Title,
		CodeContent: snippet.CodeContent,
		Language:    snippet.Language,
	}
}
