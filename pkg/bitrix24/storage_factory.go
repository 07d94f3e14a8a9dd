package bitrix24

import (
	"context"
	"errors"
	"fmt"
)

// StorageType represents the type of token storage backend.
type StorageType string

const (
	// StorageTypeMemory keeps tokens in process memory.
	StorageTypeMemory StorageType = "memory"

	// StorageTypeFile keeps tokens in a JSON file.
	StorageTypeFile StorageType = "file"

	// StorageTypeNATS keeps tokens in a NATS JetStream KV bucket.
	StorageTypeNATS StorageType = "nats"

	// StorageTypeRedis keeps tokens in Redis.
	StorageTypeRedis StorageType = "redis"

	// StorageTypeNone disables persistence.
	StorageTypeNone StorageType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired     = errors.New("NATS configuration required for NATS storage")
	ErrRedisConfigRequired    = errors.New("redis configuration required for Redis storage")
	ErrFileConfigRequired     = errors.New("file path required for file storage")
	ErrUnsupportedStorageType = errors.New("unsupported storage type")
)

// StorageConfig configures a token storage backend.
type StorageConfig struct {
	// Type is the storage backend type
	Type StorageType

	// FilePath backs the file storage
	FilePath string

	// NATS KV storage configuration
	NATS *NATSStorageConfig

	// Redis storage configuration
	Redis *RedisStorageConfig
}

// DefaultStorageConfig returns an in-memory storage configuration.
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{Type: StorageTypeMemory}
}

// NewTokenStorageFromConfig creates a token storage backend from
// configuration.
func NewTokenStorageFromConfig(ctx context.Context, config *StorageConfig) (TokenStorage, error) {
	if config == nil {
		config = DefaultStorageConfig()
	}

	switch config.Type {
	case StorageTypeMemory:
		return NewMemoryTokenStorage(), nil

	case StorageTypeFile:
		if config.FilePath == "" {
			return nil, ErrFileConfigRequired
		}

		return NewFileTokenStorage(config.FilePath), nil

	case StorageTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSTokenStorage(config.NATS)

	case StorageTypeRedis:
		if config.Redis == nil {
			return nil, ErrRedisConfigRequired
		}

		return NewRedisTokenStorage(ctx, config.Redis)

	case StorageTypeNone:
		return NewNoOpTokenStorage(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStorageType, config.Type)
	}
}

// StorageBuilder helps build storage configurations.
type StorageBuilder struct {
	config *StorageConfig
}

// NewStorageBuilder creates a new storage builder.
func NewStorageBuilder() *StorageBuilder {
	return &StorageBuilder{config: DefaultStorageConfig()}
}

// WithType sets the storage type.
func (b *StorageBuilder) WithType(storageType StorageType) *StorageBuilder {
	b.config.Type = storageType

	return b
}

// WithFile sets file storage configuration.
func (b *StorageBuilder) WithFile(path string) *StorageBuilder {
	b.config.Type = StorageTypeFile
	b.config.FilePath = path

	return b
}

// WithNATS sets NATS storage configuration.
func (b *StorageBuilder) WithNATS(config *NATSStorageConfig) *StorageBuilder {
	b.config.Type = StorageTypeNATS
	b.config.NATS = config

	return b
}

// WithRedis sets Redis storage configuration.
func (b *StorageBuilder) WithRedis(config *RedisStorageConfig) *StorageBuilder {
	b.config.Type = StorageTypeRedis
	b.config.Redis = config

	return b
}

// Build creates the storage from the configuration.
func (b *StorageBuilder) Build(ctx context.Context) (TokenStorage, error) {
	return NewTokenStorageFromConfig(ctx, b.config)
}
