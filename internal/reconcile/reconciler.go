package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/snippet-search/internal/apperror"
	"github.com/sakif/snippet-search/internal/metrics"
	"golang.org/x/time/rate"
)

// DocumentDeleter is the part of search.Index the reconciler needs.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, id string, waitForVisibility bool) error
}

// RowPurger is the part of repository.SnippetRepository the reconciler needs.
type RowPurger interface {
	DeleteOwned(ctx context.Context, id, userID string) (bool, error)
}

type Options struct {
	Interval    time.Duration // time between passes
	BatchSize   int           // items claimed per pass
	MaxAttempts int           // attempts before an item is dead-lettered
	BaseBackoff time.Duration // delay after the first failure, doubled on each further failure
	MaxBackoff  time.Duration
	// RatePerSecond paces calls to the index so a backlog does not hammer a recovering cluster.
	// Zero means unlimited.
	RatePerSecond float64
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 5 * time.Second
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = 30 * time.Minute
	}
}

// Reconciler drains the queue. It is meant to run in its own process (snippetd reconcile);
// several reconcilers can share one queue.
type Reconciler struct {
	queue   Queue
	index   DocumentDeleter
	store   RowPurger
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics

	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewReconciler(queue Queue, index DocumentDeleter, store RowPurger, opts Options, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	opts.setDefaults()

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Reconciler{
		queue:   queue,
		index:   index,
		store:   store,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs one pass immediately, then one per interval until Stop is called or ctx ends.
// Only the first call does anything.
func (r *Reconciler) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Warn("initial reconciliation pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.opts.Interval)
	go func() {
		defer close(r.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil {
					r.logger.Error("reconciliation pass failed", slog.String("error", err.Error()))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for the pass in progress to finish.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.started.Load() {
		<-r.done
	}
}

// Stats is what one pass did.
type Stats struct {
	Reclaimed    int
	Claimed      int
	Acked        int
	Retried      int
	DeadLettered int
}

// RunOnce reclaims expired leases, claims one batch and processes it.
func (r *Reconciler) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	reclaimed, err := r.queue.Reclaim(ctx)
	if err != nil {
		return stats, err
	}
	stats.Reclaimed = reclaimed

	items, err := r.queue.Claim(ctx, r.opts.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(items)

	for _, item := range items {
		if err := r.limiter.Wait(ctx); err != nil {
			// Unprocessed items keep their lease and come back through Reclaim.
			return stats, fmt.Errorf("reconcile: waiting for rate limiter: %w", err)
		}

		outcome, err := r.process(ctx, item)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case metrics.OutcomeAcked:
			stats.Acked++
		case metrics.OutcomeRetried:
			stats.Retried++
		case metrics.OutcomeDeadLettered:
			stats.DeadLettered++
		}
		r.metrics.WorkItemsProcessed.WithLabelValues(string(item.Operation), outcome).Inc()
	}

	if pending, err := r.queue.Pending(ctx); err == nil {
		r.metrics.QueueDepth.Set(float64(pending))
	}

	if stats.Claimed > 0 || stats.Reclaimed > 0 {
		r.logger.Info("reconciliation pass completed",
			slog.Int("reclaimed", stats.Reclaimed),
			slog.Int("claimed", stats.Claimed),
			slog.Int("acked", stats.Acked),
			slog.Int("retried", stats.Retried),
			slog.Int("dead_lettered", stats.DeadLettered),
		)
	} else {
		r.logger.Debug("no work items due")
	}
	return stats, nil
}

// process applies one item and settles it in the queue. The returned error is a queue failure;
// a failed repair is an outcome, not an error.
func (r *Reconciler) process(ctx context.Context, item WorkItem) (string, error) {
	cause := r.apply(ctx, item)
	if cause == nil {
		if err := r.queue.Ack(ctx, item); err != nil {
			return "", err
		}
		r.logger.Info("work item reconciled",
			slog.String("item_id", item.ID),
			slog.String("operation", string(item.Operation)),
			slog.String("snippet_id", item.SnippetID),
		)
		return metrics.OutcomeAcked, nil
	}

	item.AttemptCount++
	if item.AttemptCount >= r.opts.MaxAttempts {
		if err := r.queue.DeadLetter(ctx, item, cause); err != nil {
			return "", err
		}
		r.logger.Error("work item dead-lettered",
			slog.String("item_id", item.ID),
			slog.String("operation", string(item.Operation)),
			slog.String("snippet_id", item.SnippetID),
			slog.String("user_id", item.UserID),
			slog.Int("attempts", item.AttemptCount),
			slog.String("error", cause.Error()),
		)
		return metrics.OutcomeDeadLettered, nil
	}

	delay := Backoff(item.AttemptCount, r.opts.BaseBackoff, r.opts.MaxBackoff)
	if err := r.queue.Retry(ctx, item, cause, delay); err != nil {
		return "", err
	}
	r.logger.Warn("work item failed, rescheduled",
		slog.String("item_id", item.ID),
		slog.String("snippet_id", item.SnippetID),
		slog.Int("attempts", item.AttemptCount),
		slog.Duration("retry_in", delay),
		slog.String("error", cause.Error()),
	)
	return metrics.OutcomeRetried, nil
}

func (r *Reconciler) apply(ctx context.Context, item WorkItem) error {
	switch item.Operation {
	case OpDelete:
		return r.deleteDocument(ctx, item.SnippetID)
	case OpPurge:
		// Zero rows is fine: the row may already be gone from an earlier attempt.
		if _, err := r.store.DeleteOwned(ctx, item.SnippetID, item.UserID); err != nil {
			return err
		}
		return r.deleteDocument(ctx, item.SnippetID)
	default:
		return fmt.Errorf("reconcile: unknown operation %q", item.Operation)
	}
}

func (r *Reconciler) deleteDocument(ctx context.Context, id string) error {
	err := r.index.DeleteDocument(ctx, id, false)
	if err == nil || errors.Is(err, apperror.ErrDocumentNotFound) {
		return nil
	}
	return err
}

// Backoff returns base·2^(attempts-1), capped at maxDelay.
func Backoff(attempts int, base, maxDelay time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return min(d, maxDelay)
}
