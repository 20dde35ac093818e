// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. The `json:"..."` struct tags control the
// wire names used by the HTTP layer; `db:"..."` tags document the column each field maps to.
package model

import "time"

// Snippet is the authoritative record stored in the primary store.
//
// ID and CreatedAt are assigned by the repository on Insert; every other field comes from the
// caller. A snippet is never updated in place: it is created once and deleted once.
type Snippet struct {
	ID          string    `json:"id"           db:"id"`
	UserID      string    `json:"user_id"      db:"user_id"`
	Title       string    `json:"title"        db:"title"`
	CodeContent string    `json:"code_content" db:"code_content"`
	Language    string    `json:"language"     db:"language"`   // optional, "" when absent
	SourceURL   string    `json:"source_url"   db:"source_url"` // optional, "" when absent
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

// SnippetSummary is one row of the dashboard listing.
type SnippetSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}
