// Package search holds the search index contract and the query translator.
//
// The index is a projection of the primary store: it is only ever written by the coordinators in
// internal/service and the reconciler, and every query it serves is scoped to one user.
package search

import (
	"context"
)

// Document is what gets indexed for a snippet. SnippetID doubles as the index document id.
type Document struct {
	SnippetID   string `json:"snippet_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	CodeContent string `json:"code_content"`
	Language    string `json:"language"` // "" when the snippet has none; hits always carry the key
}

// Hit is one ranked match. The document fields are flattened next to the score in JSON.
type Hit struct {
	Score float64 `json:"score"`
	Document
}

type Result struct {
	TotalFound int64 `json:"total_found"`
	Results    []Hit `json:"results"`
}

// Index is the search engine as seen by the rest of the service.
//
// Failures are classified with apperror: ErrIndexUnavailable for transport errors and non-2xx
// answers, ErrDocumentNotFound when DeleteDocument finds nothing to delete.
type Index interface {
	// IndexDocument creates or replaces the document. With waitForVisibility the call returns
	// only once the document is visible to Search.
	IndexDocument(ctx context.Context, doc Document, waitForVisibility bool) error
	DeleteDocument(ctx context.Context, id string, waitForVisibility bool) error
	Search(ctx context.Context, q Query) (*Result, error)
	// Health returns the cluster status: green, yellow or red.
	Health(ctx context.Context) (string, error)
	// EnsureIndex creates the index with its mapping when it does not exist yet.
	EnsureIndex(ctx context.Context) (created bool, err error)
}
