package bitrix24

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ainq-io/bitrix24-client/internal/constants"
)

// RedisStorageConfig configures the Redis token storage.
type RedisStorageConfig struct {
	// Addr is the Redis host:port.
	Addr string

	// Password is optional.
	Password string

	// DB selects the Redis database.
	DB int

	// KeyPrefix namespaces the token keys. Defaults to "b24:token:".
	KeyPrefix string

	// TTL expires stored tokens after the given duration. Zero keeps them
	// until removed.
	TTL time.Duration
}

// RedisTokenStorage persists the token pair in Redis, sharing tokens between
// processes that serve the same portal.
type RedisTokenStorage struct {
	client *redis.Client
	ttl    time.Duration

	accessKey  string
	refreshKey string
}

// NewRedisTokenStorage connects to Redis and verifies the connection.
func NewRedisTokenStorage(ctx context.Context, config *RedisStorageConfig) (*RedisTokenStorage, error) {
	if config == nil || config.Addr == "" {
		return nil, ErrRedisConfigRequired
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = constants.DefaultRedisKeyPrefix
	}

	return &RedisTokenStorage{
		client:     client,
		ttl:        config.TTL,
		accessKey:  prefix + "access",
		refreshKey: prefix + "refresh",
	}, nil
}

func (s *RedisTokenStorage) get(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}

		return "", fmt.Errorf("reading %s: %w", key, err)
	}

	return token, nil
}

func (s *RedisTokenStorage) put(ctx context.Context, key, token string) error {
	err := s.client.Set(ctx, key, token, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	return nil
}

func (s *RedisTokenStorage) remove(ctx context.Context, key string) error {
	err := s.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}

	return nil
}

// GetAccessToken returns the access token from Redis.
func (s *RedisTokenStorage) GetAccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.accessKey)
}

// StoreAccessToken writes the access token to Redis.
func (s *RedisTokenStorage) StoreAccessToken(ctx context.Context, token string) error {
	return s.put(ctx, s.accessKey, token)
}

// RemoveAccessToken drops the access token from Redis.
func (s *RedisTokenStorage) RemoveAccessToken(ctx context.Context) error {
	return s.remove(ctx, s.accessKey)
}

// GetRefreshToken returns the refresh token from Redis.
func (s *RedisTokenStorage) GetRefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.refreshKey)
}

// StoreRefreshToken writes the refresh token to Redis.
func (s *RedisTokenStorage) StoreRefreshToken(ctx context.Context, token string) error {
	return s.put(ctx, s.refreshKey, token)
}

// RemoveRefreshToken drops the refresh token from Redis.
func (s *RedisTokenStorage) RemoveRefreshToken(ctx context.Context) error {
	return s.remove(ctx, s.refreshKey)
}

// Close releases the Redis client.
func (s *RedisTokenStorage) Close() error {
	return s.client.Close()
}
