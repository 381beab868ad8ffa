package limiter

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/account-keeper/internal/errs"
)

// RedisClient is the subset of redis.Cmdable the limiter uses.
type RedisClient interface {
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ RedisClient = (*redis.Client)(nil)

// Redis keeps failure counters and blocks as expiring keys. The failure window
// restarts on every failure, matching the PostgreSQL limiter.
type Redis struct {
	rdb      RedisClient
	prefix   string
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

// NewRedis constructs a Redis-backed limiter. Keys are namespaced by prefix.
func NewRedis(rdb RedisClient, prefix string, window time.Duration, maxFails int, blockFor time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, window: window, maxFails: maxFails, blockFor: blockFor}
}

func (l *Redis) keys(email string, ipHash []byte) (fails, block string) {
	base := l.prefix + ":" + email + ":" + hex.EncodeToString(ipHash)
	return base + ":fails", base + ":block"
}

// Allow reports whether a block key is live and for how long.
func (l *Redis) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(email, ipHash)
	ttl, err := l.rdb.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, redisError("limiter.allow", err)
	}
	// Missing keys report a negative TTL.
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success drops both counters.
func (l *Redis) Success(ctx context.Context, email string, ipHash []byte) error {
	fails, block := l.keys(email, ipHash)
	return redisError("limiter.success", l.rdb.Del(ctx, fails, block).Err())
}

// Failure increments the counter and sets a block once it reaches maxFails.
func (l *Redis) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(email, ipHash)
	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, redisError("limiter.failure", err)
	}
	if err := l.rdb.PExpire(ctx, fails, l.window).Err(); err != nil {
		return false, 0, redisError("limiter.failure", err)
	}
	if n < int64(l.maxFails) {
		return false, 0, nil
	}
	if err := l.rdb.Set(ctx, block, "1", l.blockFor).Err(); err != nil {
		return false, 0, redisError("limiter.block", err)
	}
	return true, l.blockFor, nil
}

func redisError(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := errs.KindCacheUnavailable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = errs.KindOperationTimeout
	}
	return errs.Wrap(err, kind).WithDetail("operation", op)
}
