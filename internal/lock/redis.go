package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "machinelog:sheet:"

// RedisOptions tunes the distributed locker.
type RedisOptions struct {
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait is the longest Acquire will retry before giving up.
	Wait time.Duration
	// RetryInterval is the pause between attempts.
	RetryInterval time.Duration
}

// Redis is a Locker backed by redislock.
type Redis struct {
	client *redislock.Client
	opts   RedisOptions
}

// NewRedis wraps a go-redis client.
func NewRedis(rdb redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	return &Redis{client: redislock.New(rdb), opts: opts}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.opts.Wait)
	defer cancel()

	l, err := r.client.Obtain(waitCtx, keyPrefix+key, r.opts.TTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.opts.RetryInterval),
	})
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		return nil, ErrLockTimeout
	case err != nil:
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release regardless.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				slog.Warn("sheet lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}
