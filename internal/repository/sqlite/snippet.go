package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/repository"
)

// Compile-time check that *DB satisfies the interface.
var _ repository.SnippetRepository = (*DB)(nil)

// Insert stores a new snippet. It assigns snippet.ID (a UUID) and snippet.CreatedAt so the
// caller can pass the same struct on to the search index.
//
// Optional fields are written as NULL when empty: a missing language is not the same thing
// as a language called "".
func (db *DB) Insert(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = uuid.NewString()
	snippet.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, user_id, title, code_content, language, source_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.UserID,
		snippet.Title,
		snippet.CodeContent,
		nullString(snippet.Language),
		nullString(snippet.SourceURL),
		snippet.CreatedAt,
	)
	if err != nil {
		return classify("inserting snippet", err)
	}
	return nil
}

// DeleteOwned removes the row only when both id and owner match. A row owned by someone
// else and a row that does not exist look the same to the caller: false, nil.
func (db *DB) DeleteOwned(ctx context.Context, id, userID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, classify("deleting snippet", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classify("deleting snippet", err)
	}
	return rowsAffected > 0, nil
}

// ListByUser returns the user's snippets newest first. Snippets created within the same
// clock tick are ordered by rowid so the result is stable across calls.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.SnippetSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, language, created_at
		 FROM snippets
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, classify("listing snippets", err)
	}
	defer rows.Close()

	// Start with an empty slice, not nil, so the JSON encoder writes [] rather than null.
	summaries := []model.SnippetSummary{}
	for rows.Next() {
		var (
			s        model.SnippetSummary
			language sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &language, &s.CreatedAt); err != nil {
			return nil, classify("scanning snippet row", err)
		}
		s.Language = language.String
		summaries = append(summaries, s)
	}

	// rows.Next() returns false on both "no more rows" and "error"; rows.Err() tells them apart.
	if err := rows.Err(); err != nil {
		return nil, classify("iterating snippet rows", err)
	}

	return summaries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

