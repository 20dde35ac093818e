// Package postgres implements the repository interfaces on PostgreSQL through lib/pq.
//
// All SQL is static and kept in the query constants below, so every statement the adapter can
// run is visible in one place (and matched verbatim by the sqlmock tests).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/sakif/snippet-search/internal/apperror"
)

const (
	createUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	createSnippetsTable = `CREATE TABLE IF NOT EXISTS snippets (
	id           UUID PRIMARY KEY,
	user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title        VARCHAR(255) NOT NULL,
	code_content TEXT NOT NULL,
	language     VARCHAR(50),
	source_url   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	createSnippetsUserIndex = `CREATE INDEX IF NOT EXISTS idx_snippets_user_created ON snippets (user_id, created_at DESC)`
)

// DB wraps a sql.DB pool. It implements repository.SnippetRepository and repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// Open connects to dsn and pings it up to retries times, waiting between attempts. The database
// container usually starts alongside the service, so the first pings are expected to fail.
func Open(ctx context.Context, dsn string, retries int, wait time.Duration, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}

	if retries < 1 {
		retries = 1
	}
	for attempt := 1; ; attempt++ {
		err = conn.PingContext(ctx)
		if err == nil {
			logger.Info("connected to postgres", slog.Int("attempt", attempt))
			return New(conn), nil
		}
		if attempt >= retries {
			break
		}
		logger.Warn("postgres not reachable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, fmt.Errorf("postgres: waiting for database: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	conn.Close()
	return nil, fmt.Errorf("postgres: database unreachable after %d attempts: %w", retries, err)
}

// New wraps an existing pool. Tests pass a sqlmock connection here.
func New(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.StoreUnavailable("pinging database", err)
	}
	return nil
}

// Migrate creates the schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createUsersTable, createSnippetsTable, createSnippetsUserIndex} {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrating: %w", err)
		}
	}
	return nil
}

// classify maps SQLSTATE class 23 (integrity constraint violation) to IntegrityViolation and
// everything else to StoreUnavailable.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return apperror.IntegrityViolation(op, err)
	}
	return apperror.StoreUnavailable(op, fmt.Errorf("postgres: %w", err))
}
