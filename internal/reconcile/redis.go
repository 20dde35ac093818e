package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type ConnectOptions struct {
	Addr     string
	Password string
	DB       int
	// ConnectTimeout bounds all attempts together.
	ConnectTimeout time.Duration
	// RetryInterval is the first wait between attempts; it doubles up to MaxWait.
	RetryInterval time.Duration
	MaxWait       time.Duration
}

// Connect returns a client once Redis answers PING, retrying with exponential backoff until
// ConnectTimeout runs out.
func Connect(ctx context.Context, opts ConnectOptions, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	wait := opts.RetryInterval
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	if opts.MaxWait < wait {
		opts.MaxWait = wait
	}
	for attempt := 1; ; attempt++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Info("connected to redis", slog.String("addr", opts.Addr), slog.Int("attempts", attempt))
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			client.Close()
			return nil, fmt.Errorf("reconcile: redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
			logger.Warn("redis connection failed, retrying",
				slog.String("addr", opts.Addr),
				slog.Int("attempt", attempt),
				slog.Duration("next_retry_in", wait),
				slog.String("error", err.Error()),
			)
			wait *= 2
			if wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
	}
}
