package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sakif/snippet-search/internal/model"
	"github.com/sakif/snippet-search/internal/repository"
)

const (
	insertSnippet = `INSERT INTO snippets (id, user_id, title, code_content, language, source_url)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`

	deleteOwnedSnippet = `DELETE FROM snippets WHERE id = $1 AND user_id = $2`

	listSnippetsByUser = `SELECT id, title, language, created_at
FROM snippets
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`
)

var _ repository.SnippetRepository = (*DB)(nil)

// Insert assigns snippet.ID and lets the database stamp created_at.
func (db *DB) Insert(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = uuid.NewString()

	err := db.conn.QueryRowContext(ctx, insertSnippet,
		snippet.ID,
		snippet.UserID,
		snippet.Title,
		snippet.CodeContent,
		nullString(snippet.Language),
		nullString(snippet.SourceURL),
	).Scan(&snippet.CreatedAt)
	if err != nil {
		return classify("inserting snippet", err)
	}
	return nil
}

func (db *DB) DeleteOwned(ctx context.Context, id, userID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx, deleteOwnedSnippet, id, userID)
	if err != nil {
		return false, classify("deleting snippet", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, classify("deleting snippet", err)
	}
	return n > 0, nil
}

func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.SnippetSummary, error) {
	rows, err := db.conn.QueryContext(ctx, listSnippetsByUser, userID)
	if err != nil {
		return nil, classify("listing snippets", err)
	}
	defer rows.Close()

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
	if err := rows.Err(); err != nil {
		return nil, classify("iterating snippet rows", err)
	}
	return summaries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
