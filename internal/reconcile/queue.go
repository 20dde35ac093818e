package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Queue is a durable, at-least-once work queue. Claimed items are leased: an item that is
// neither acknowledged, retried nor dead-lettered before its lease runs out goes back to pending
// on the next Reclaim.
type Queue interface {
	Enqueue(ctx context.Context, item WorkItem) error
	// Claim leases up to limit due items.
	Claim(ctx context.Context, limit int) ([]WorkItem, error)
	Ack(ctx context.Context, item WorkItem) error
	// Retry records cause on the item and schedules it delay from now.
	Retry(ctx context.Context, item WorkItem, cause error, delay time.Duration) error
	DeadLetter(ctx context.Context, item WorkItem, cause error) error
	// Reclaim returns items with expired leases to pending and reports how many moved.
	Reclaim(ctx context.Context) (int, error)
	// Pending counts items waiting to be claimed, due or not.
	Pending(ctx context.Context) (int64, error)
}

// RedisQueue keeps the queue in four keys under a prefix:
//
//	<prefix>:pending     sorted set, member = item id, score = due time (unix ms)
//	<prefix>:processing  sorted set, member = item id, score = lease expiry (unix ms)
//	<prefix>:items       hash, item id → item JSON
//	<prefix>:dead        hash, item id → item JSON
type RedisQueue struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	now    func() time.Time
}

var _ Queue = (*RedisQueue)(nil)

const DefaultPrefix = "snippets:reconcile"

// claimScript moves due ids from pending to processing in one step so two reconcilers never
// claim the same item.
//
// KEYS[1] pending, KEYS[2] processing; ARGV[1] now ms, ARGV[2] max, ARGV[3] lease expiry ms
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('ZADD', KEYS[2], ARGV[3], id)
end
return ids
`)

// reclaimScript: KEYS[1] processing, KEYS[2] pending; ARGV[1] now ms
var reclaimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #ids
`)

func NewRedisQueue(client *redis.Client, prefix string, lease time.Duration) *RedisQueue {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisQueue{client: client, prefix: prefix, lease: lease, now: time.Now}
}

func (q *RedisQueue) pendingKey() string    { return q.prefix + ":pending" }
func (q *RedisQueue) processingKey() string { return q.prefix + ":processing" }
func (q *RedisQueue) itemsKey() string      { return q.prefix + ":items" }
func (q *RedisQueue) deadKey() string       { return q.prefix + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("reconcile: encoding work item: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.itemsKey(), item.ID, data)
		pipe.ZAdd(ctx, q.pendingKey(), redis.Z{Score: float64(item.NextAttemptAt.UnixMilli()), Member: item.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile: enqueueing %s: %w", item.ID, err)
	}
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, limit int) ([]WorkItem, error) {
	now := q.now()
	ids, err := claimScript.Run(ctx, q.client,
		[]string{q.pendingKey(), q.processingKey()},
		now.UnixMilli(), limit, now.Add(q.lease).UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("reconcile: claiming work items: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := q.client.HMGet(ctx, q.itemsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reconcile: loading work items: %w", err)
	}

	items := make([]WorkItem, 0, len(ids))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			// Lease without a body; nothing to process.
			q.client.ZRem(ctx, q.processingKey(), ids[i])
			continue
		}
		var item WorkItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("reconcile: decoding work item %s: %w", ids[i], err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *RedisQueue) Ack(ctx context.Context, item WorkItem) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.processingKey(), item.ID)
		pipe.HDel(ctx, q.itemsKey(), item.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile: acknowledging %s: %w", item.ID, err)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, item WorkItem, cause error, delay time.Duration) error {
	if cause != nil {
		item.LastError = cause.Error()
	}
	item.NextAttemptAt = q.now().Add(delay)

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("reconcile: encoding work item: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.itemsKey(), item.ID, data)
		pipe.ZRem(ctx, q.processingKey(), item.ID)
		pipe.ZAdd(ctx, q.pendingKey(), redis.Z{Score: float64(item.NextAttemptAt.UnixMilli()), Member: item.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile: rescheduling %s: %w", item.ID, err)
	}
	return nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, item WorkItem, cause error) error {
	if cause != nil {
		item.LastError = cause.Error()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("reconcile: encoding work item: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.processingKey(), item.ID)
		pipe.HDel(ctx, q.itemsKey(), item.ID)
		pipe.HSet(ctx, q.deadKey(), item.ID, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile: dead-lettering %s: %w", item.ID, err)
	}
	return nil
}

func (q *RedisQueue) Reclaim(ctx context.Context) (int, error) {
	n, err := reclaimScript.Run(ctx, q.client,
		[]string{q.processingKey(), q.pendingKey()},
		q.now().UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("reconcile: reclaiming expired leases: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("reconcile: counting pending items: %w", err)
	}
	return n, nil
}

// DeadLetters returns every dead-lettered item.
func (q *RedisQueue) DeadLetters(ctx context.Context) ([]WorkItem, error) {
	raw, err := q.client.HGetAll(ctx, q.deadKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reconcile: listing dead letters: %w", err)
	}
	items := make([]WorkItem, 0, len(raw))
	for id, s := range raw {
		var item WorkItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("reconcile: decoding dead letter %s: %w", id, err)
		}
		items = append(items, item)
	}
	return items, nil
}
