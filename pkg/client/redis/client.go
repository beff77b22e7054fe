package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"quickcommerce/internal/config"
	"time"
)

const (
	pingTimeout = 5 * time.Second
	retryDelay  = time.Second
)

// Client is the subset of commands the session backend issues.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient connects and pings up to sc.Attempts times. The returned client
// is closed again when no ping succeeded.
func NewClient(ctx context.Context, sc config.StorageRedis) (*redis.Client, error) {
	attempts := max(sc.Attempts, 1)

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", sc.Host, sc.Port),
		Username: sc.Username,
		Password: sc.Password,
		DB:       sc.DB,
	})

	err := doWithTries(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}, attempts, retryDelay)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", attempts, err)
	}

	return client, nil
}

// doWithTries stops early when ctx is done; the last fn error is returned.
func doWithTries(ctx context.Context, fn func(context.Context) error, attempts int, delay time.Duration) error {
	var err error
	for ; attempts > 0; attempts-- {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempts == 1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}
