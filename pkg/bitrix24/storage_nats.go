package bitrix24

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/ainq-io/bitrix24-client/internal/constants"
)

// NATSStorageConfig configures the JetStream KV token storage.
type NATSStorageConfig struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string

	// Bucket is the KV bucket name; created when missing.
	Bucket string

	// KeyPrefix namespaces the token keys, letting several portals share a
	// bucket. KV key characters only (letters, digits, ".", "_", "-", "/").
	KeyPrefix string

	// CredsFile is an optional NATS credentials file.
	CredsFile string
}

// NATSTokenStorage persists the token pair in a NATS JetStream KV bucket,
// sharing tokens between processes that serve the same portal.
type NATSTokenStorage struct {
	conn *nats.Conn
	kv   nats.KeyValue

	accessKey  string
	refreshKey string
}

// NewNATSTokenStorage connects to NATS and binds the token bucket.
func NewNATSTokenStorage(config *NATSStorageConfig) (*NATSTokenStorage, error) {
	if config == nil || config.URL == "" {
		return nil, ErrNATSConfigRequired
	}

	var opts []nats.Option
	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("getting JetStream context: %w", err)
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = constants.DefaultNATSBucket
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("binding KV bucket %q: %w", bucket, err)
	}

	return &NATSTokenStorage{
		conn:       conn,
		kv:         kv,
		accessKey:  config.KeyPrefix + "access_token",
		refreshKey: config.KeyPrefix + "refresh_token",
	}, nil
}

func (s *NATSTokenStorage) get(key string) (string, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", ErrTokenNotFound
		}

		return "", fmt.Errorf("reading %s: %w", key, err)
	}

	if len(entry.Value()) == 0 {
		return "", ErrTokenNotFound
	}

	return string(entry.Value()), nil
}

func (s *NATSTokenStorage) put(key, token string) error {
	_, err := s.kv.Put(key, []byte(token))
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	return nil
}

func (s *NATSTokenStorage) remove(key string) error {
	err := s.kv.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("removing %s: %w", key, err)
	}

	return nil
}

// GetAccessToken returns the access token from the bucket.
func (s *NATSTokenStorage) GetAccessToken(ctx context.Context) (string, error) {
	return s.get(s.accessKey)
}

// StoreAccessToken writes the access token to the bucket.
func (s *NATSTokenStorage) StoreAccessToken(ctx context.Context, token string) error {
	return s.put(s.accessKey, token)
}

// RemoveAccessToken drops the access token from the bucket.
func (s *NATSTokenStorage) RemoveAccessToken(ctx context.Context) error {
	return s.remove(s.accessKey)
}

// GetRefreshToken returns the refresh token from the bucket.
func (s *NATSTokenStorage) GetRefreshToken(ctx context.Context) (string, error) {
	return s.get(s.refreshKey)
}

// StoreRefreshToken writes the refresh token to the bucket.
func (s *NATSTokenStorage) StoreRefreshToken(ctx context.Context, token string) error {
	return s.put(s.refreshKey, token)
}

// RemoveRefreshToken drops the refresh token from the bucket.
func (s *NATSTokenStorage) RemoveRefreshToken(ctx context.Context) error {
	return s.remove(s.refreshKey)
}

// Close drains the NATS connection.
func (s *NATSTokenStorage) Close() error {
	return s.conn.Drain()
}
