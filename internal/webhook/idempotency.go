package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// idempotencyTTL covers the longest possible retry window (MaxRetries
// attempts at the 2s*2^n backoff) plus slack for asynq's own at-least-once
// redelivery of a stuck task.
const idempotencyTTL = 10 * time.Minute

// Idempotency guards a single (messageId, attempt) pair from being POSTed
// twice — asynq's at-least-once task delivery can redeliver a task whose
// handler already ran to completion but whose ack was lost. Implemented by
// *RedisIdempotency in production; a nil Idempotency on Dispatcher disables
// the check.
type Idempotency interface {
	// Claim returns true the first time it is called for key within the TTL
	// window, false on every subsequent call.
	Claim(ctx context.Context, key string) (bool, error)
}

// RedisIdempotency claims keys with SET NX, grounded on the teacher's
// idempotency-key check in middlewares/middleware.go (same Get-before-Set
// shape, here collapsed into a single atomic SETNX).
type RedisIdempotency struct {
	client *redis.Client
}

func NewRedisIdempotency(client *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{client: client}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, "webhook:idem:"+key, 1, idempotencyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("webhook: idempotency claim %s: %w", key, err)
	}
	return ok, nil
}

func idempotencyKey(p payload) string {
	return fmt.Sprintf("%s:%d", p.MessageID, p.RetryCount)
}
