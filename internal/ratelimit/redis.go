// Package ratelimit provides a redis-backed fixed-window request limiter
// for the public auth endpoints. Counters live in redis so the limit holds
// across replicas; when redis is not configured the router falls back to the
// in-memory limiter middleware.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int

	Limit  int
	Window time.Duration
}

type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(cfg Config) *RedisLimiter {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}

	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

// Allow counts a hit against the key's current window. The first hit opens
// the window via EXPIRE; retryAfter is the window remainder when denied.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error) {
	rkey := "ratelimit:" + key + ":" + strconv.FormatInt(time.Now().Unix()/int64(l.window.Seconds()), 10)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.Expire(ctx, rkey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	if incr.Val() > int64(l.limit) {
		ttl, err := l.rdb.TTL(ctx, rkey).Result()

		if err != nil || ttl < 0 {
			ttl = l.window
		}

		return false, ttl, nil
	}

	return true, 0, nil
}
