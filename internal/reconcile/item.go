// Package reconcile repairs drift between the primary store and the search index.
//
// The delete and create paths record what they could not finish as WorkItems in a durable queue.
// A Reconciler, running in its own process, claims due items and retries them with exponential
// backoff until they succeed or run out of attempts.
package reconcile

import (
	"time"

	"github.com/rs/xid"
)

type Operation string

const (
	// OpDelete removes a search document whose snippet is already gone from the primary store.
	OpDelete Operation = "delete"
	// OpPurge removes a snippet row that a failed rollback left behind, then its document.
	OpPurge Operation = "purge"
)

type WorkItem struct {
	ID            string    `json:"id"`
	Operation     Operation `json:"operation"`
	SnippetID     string    `json:"snippet_id"`
	UserID        string    `json:"user_id"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
}

// NewWorkItem returns an item that is due immediately. lastError is the failure that caused it.
func NewWorkItem(op Operation, snippetID, userID string, lastError error, now time.Time) WorkItem {
	item := WorkItem{
		ID:            xid.New().String(),
		Operation:     op,
		SnippetID:     snippetID,
		UserID:        userID,
		EnqueuedAt:    now,
		NextAttemptAt: now,
	}
	if lastError != nil {
		item.LastError = lastError.Error()
	}
	return item
}
