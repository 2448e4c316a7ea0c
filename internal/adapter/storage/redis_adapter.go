package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	credentialKeyPrefix  = "credential:"
	defaultCredentialTTL = 24 * time.Hour
)

// RedisCredentialStore keeps the bearer credential of one profile so that
// separate CLI invocations share a session until logout or expiry.
type RedisCredentialStore struct {
	client  *redis.Client
	profile string
	ttl     time.Duration
}

func NewRedisCredentialStore(client *redis.Client, profile string, ttl time.Duration) *RedisCredentialStore {
	if ttl <= 0 {
		ttl = defaultCredentialTTL
	}
	return &RedisCredentialStore{client: client, profile: profile, ttl: ttl}
}

func (r *RedisCredentialStore) key() string {
	return credentialKeyPrefix + r.profile
}

func (r *RedisCredentialStore) Token(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (r *RedisCredentialStore) SaveToken(ctx context.Context, token string) error {
	return r.client.Set(ctx, r.key(), token, r.ttl).Err()
}

func (r *RedisCredentialStore) ClearToken(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}
