package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-search/internal/auth"
	"github.com/sakif/snippet-search/internal/reconcile"
	"github.com/sakif/snippet-search/internal/server"
	"github.com/sakif/snippet-search/internal/service"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c.Context)
			defer stop()

			db, err := e.openStore(ctx, false)
			if err != nil {
				return err
			}
			// Closed after the server has drained, so in-flight requests keep their connections.
			defer db.Close()

			index, err := e.openIndex()
			if err != nil {
				return err
			}
			if _, err := index.EnsureIndex(ctx); err != nil {
				// The API still serves listing and deletes without the cluster.
				e.logger.Warn("search index not ready", slog.String("error", err.Error()))
			}

			rdb, err := e.connectRedis(ctx)
			if err != nil {
				return err
			}
			defer rdb.Close()

			tokens, err := auth.NewTokenService(e.cfg.JWT.Secret, e.cfg.JWT.TTL)
			if err != nil {
				return err
			}

			reg, m := newMetrics()
			snippets := service.NewSnippetService(db, index, e.queue(rdb), m, e.logger)
			users := service.NewUserService(db, tokens, e.logger)

			srv, err := server.New(server.Config{
				Addr:            e.cfg.HTTP.Addr,
				RequestTimeout:  e.cfg.HTTP.Timeout,
				ShutdownTimeout: e.cfg.HTTP.Shutdown,
				TokenTTL:        e.cfg.JWT.TTL,
			}, server.Deps{
				Snippets: snippets,
				Users:    users,
				Tokens:   tokens,
				Store:    db,
				Index:    index,
				Metrics:  reg,
			}, e.logger)
			if err != nil {
				return err
			}

			return srv.Start(ctx)
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "drain the reconciliation queue",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run a single pass and exit",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "serve /metrics on this address, e.g. :9102",
				EnvVars: []string{"SNIPPETS_RECONCILE_METRICS_ADDR"},
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c.Context)
			defer stop()

			db, err := e.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer db.Close()

			index, err := e.openIndex()
			if err != nil {
				return err
			}

			rdb, err := e.connectRedis(ctx)
			if err != nil {
				return err
			}
			defer rdb.Close()

			reg, m := newMetrics()
			rc := e.cfg.Reconcile
			r := reconcile.NewReconciler(e.queue(rdb), index, db, reconcile.Options{
				Interval:      rc.Interval,
				BatchSize:     rc.Batch,
				MaxAttempts:   rc.Attempts,
				BaseBackoff:   rc.Backoff,
				MaxBackoff:    rc.MaxBackoff,
				RatePerSecond: rc.Rate,
			}, e.logger, m)

			if c.Bool("once") {
				stats, err := r.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "reclaimed=%d claimed=%d acked=%d retried=%d dead_lettered=%d\n",
					stats.Reclaimed, stats.Claimed, stats.Acked, stats.Retried, stats.DeadLettered)
				return nil
			}

			if addr := c.String("metrics-addr"); addr != "" {
				metricsSrv := &http.Server{
					Addr:              addr,
					Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						e.logger.Error("metrics server failed", slog.String("error", err.Error()))
					}
				}()
				defer metricsSrv.Close()
			}

			r.Start(ctx)
			<-ctx.Done()
			e.logger.Info("shutdown signal received")
			r.Stop()
			return nil
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create the database schema and the search index",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c.Context)
			defer stop()

			db, err := e.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer db.Close()
			e.logger.Info("schema ready", slog.String("driver", e.cfg.Database.Driver))

			index, err := e.openIndex()
			if err != nil {
				return err
			}
			created, err := index.EnsureIndex(ctx)
			if err != nil {
				return err
			}
			e.logger.Info("search index ready",
				slog.String("index", e.cfg.Elastic.Index),
				slog.Bool("created", created),
			)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print a bearer token for an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "user id",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime, defaults to jwt.ttl",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}

			db, err := e.openStore(c.Context, false)
			if err != nil {
				return err
			}
			defer db.Close()

			tokens, err := auth.NewTokenService(e.cfg.JWT.Secret, e.cfg.JWT.TTL)
			if err != nil {
				return err
			}

			token, err := service.NewUserService(db, tokens, e.logger).IssueToken(c.Context, c.String("user"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func deadCommand() *cli.Command {
	return &cli.Command{
		Name:  "dead",
		Usage: "list dead-lettered work items, one JSON object per line",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}

			rdb, err := e.connectRedis(c.Context)
			if err != nil {
				return err
			}
			defer rdb.Close()

			items, err := e.queue(rdb).DeadLetters(c.Context)
			if err != nil {
				return err
			}

			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(c.App.Writer)
			for _, item := range items {
				if err := enc.Encode(item); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
