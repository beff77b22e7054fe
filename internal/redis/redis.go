package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	redis2 "github.com/redis/go-redis/v9"
	"quickcommerce/internal/model"
	"quickcommerce/internal/storage"
	"quickcommerce/pkg/client/redis"
)

type repositoryRedis struct {
	Client    redis.Client
	Namespace string
}

// NewRepositoryRedis keeps one session per namespace, e.g. per CLI profile.
func NewRepositoryRedis(client redis.Client, namespace string) storage.Storage {
	return &repositoryRedis{Client: client, Namespace: namespace}
}

func (r *repositoryRedis) key(name string) string {
	return fmt.Sprintf("%s:%s", name, r.Namespace)
}

func (r *repositoryRedis) GetTokens(ctx context.Context) (*model.TokenPair, error) {
	var tokens model.TokenPair
	if err := r.get(ctx, storage.TokensKey, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (r *repositoryRedis) SaveTokens(ctx context.Context, tokens model.TokenPair) error {
	return r.set(ctx, storage.TokensKey, tokens)
}

func (r *repositoryRedis) DeleteTokens(ctx context.Context) error {
	return r.del(ctx, storage.TokensKey)
}

func (r *repositoryRedis) GetUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := r.get(ctx, storage.UserKey, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repositoryRedis) SaveUser(ctx context.Context, user model.User) error {
	return r.set(ctx, storage.UserKey, user)
}

func (r *repositoryRedis) DeleteUser(ctx context.Context) error {
	return r.del(ctx, storage.UserKey)
}

func (r *repositoryRedis) get(ctx context.Context, name string, v any) error {
	res, err := r.Client.Get(ctx, r.key(name)).Result()
	if errors.Is(err, redis2.Nil) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis.get %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(res), v); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, name, err)
	}
	return nil
}

func (r *repositoryRedis) set(ctx context.Context, name string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	// No expiry: the session ends on logout, not on a timer.
	if err := r.Client.Set(ctx, r.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("redis.set %s: %w", name, err)
	}
	return nil
}

func (r *repositoryRedis) del(ctx context.Context, name string) error {
	err := r.Client.Del(ctx, r.key(name)).Err()
	if err != nil && !errors.Is(err, redis2.Nil) {
		return fmt.Errorf("redis.del %s: %w", name, err)
	}
	return nil
}
