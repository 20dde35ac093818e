package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-search/internal/config"
	"github.com/sakif/snippet-search/internal/metrics"
	"github.com/sakif/snippet-search/internal/reconcile"
	"github.com/sakif/snippet-search/internal/repository"
	"github.com/sakif/snippet-search/internal/repository/postgres"
	"github.com/sakif/snippet-search/internal/repository/sqlite"
	"github.com/sakif/snippet-search/internal/search/elastic"
)

// store is what both primary store implementations provide.
type store interface {
	repository.SnippetRepository
	repository.UserRepository
	Close() error
}

// env holds what every command starts from.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// newLogger builds the process logger. Text for terminals, JSON for log shippers.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

// openStore connects to the configured primary store. SQLite migrates on open; Postgres only
// when migrate is set, since its schema belongs to `snippetd init`.
func (e *env) openStore(ctx context.Context, migrate bool) (store, error) {
	switch e.cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, e.cfg.Database.URL, e.cfg.Database.Retries, e.cfg.Database.RetryWait, e.logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return db, nil

	default:
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		if dir := filepath.Dir(e.cfg.Database.URL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(e.cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

func (e *env) openIndex() (*elastic.Client, error) {
	return elastic.New(elastic.Config{
		Addresses:  e.cfg.Elastic.Addresses,
		Username:   e.cfg.Elastic.Username,
		Password:   e.cfg.Elastic.Password,
		Index:      e.cfg.Elastic.Index,
		MaxRetries: e.cfg.Elastic.Retries,
	}, e.logger)
}

func (e *env) connectRedis(ctx context.Context) (*redis.Client, error) {
	return reconcile.Connect(ctx, reconcile.ConnectOptions{
		Addr:           e.cfg.Redis.Addr,
		Password:       e.cfg.Redis.Password,
		DB:             e.cfg.Redis.DB,
		ConnectTimeout: 30 * time.Second,
		RetryInterval:  500 * time.Millisecond,
		MaxWait:        5 * time.Second,
	}, e.logger)
}

func (e *env) queue(client *redis.Client) *reconcile.RedisQueue {
	return reconcile.NewRedisQueue(client, e.cfg.Redis.Prefix, e.cfg.Reconcile.Lease)
}

// newMetrics registers the domain instruments next to the Go runtime and process collectors.
func newMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}
