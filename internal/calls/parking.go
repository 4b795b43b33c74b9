package calls

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisParker buffers webhook events that arrived before the initiation
// flow committed the provider call id. Events sit in a per-call Redis list
// until drained by Engine.Replay or expired by TTL.
//
// This is best-effort infrastructure: the reconciliation contract is
// already safe without it (unmatched events are benign drops), parking
// just narrows the window in which an early call_started or call_ended
// would otherwise be lost.

const parkedKeyPrefix = "calls:parked:"

type RedisParker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisParker(rdb *redis.Client, ttl time.Duration) *RedisParker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisParker{rdb: rdb, ttl: ttl}
}

func (p *RedisParker) Park(ctx context.Context, providerCallID string, payload []byte) error {
	key := parkedKeyPrefix + providerCallID
	pipe := p.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisParker) Drain(ctx context.Context, providerCallID string) ([][]byte, error) {
	key := parkedKeyPrefix + providerCallID
	pipe := p.rdb.TxPipeline()
	lrange := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	vals, err := lrange.Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}
