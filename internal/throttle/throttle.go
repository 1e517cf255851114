package throttle

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Limiter counts attempts per key inside a fixed window.
type Limiter interface {
	// Hit records one attempt for key and reports whether it is still
	// within the allowance.
	Hit(ctx context.Context, key string) (bool, error)
	// Reset forgets every attempt recorded for key.
	Reset(ctx context.Context, key string) error
}

// Redis is a fixed-window limiter backed by INCR/EXPIRE.
type Redis struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedis connects to addr and checks the connection with a ping.
func NewRedis(ctx context.Context, addr, password string, db, maxAttempts int, window time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return &Redis{client: client, maxAttempts: maxAttempts, window: window}, nil
}

func (l *Redis) redisKey(key string) string {
	return fmt.Sprintf("rl:%d:%s", int64(l.window.Seconds()), key)
}

func (l *Redis) Hit(ctx context.Context, key string) (bool, error) {
	k := l.redisKey(key)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, fmt.Errorf("incr %s: %w", k, err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	return n <= int64(l.maxAttempts), nil
}

func (l *Redis) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.redisKey(key)).Err()
}

// Close releases the connection pool.
func (l *Redis) Close() error {
	return l.client.Close()
}
