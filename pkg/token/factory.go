package token

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreConfig contains configuration for creating token stores
type StoreConfig struct {
	// DB is required for PostgreSQL stores
	DB DBTX
	// Redis is required for redis stores
	Redis redis.UniversalClient
	// KeyPrefix namespaces redis keys
	KeyPrefix string
	// ExpiredRetention keeps expired redis tokens readable
	ExpiredRetention time.Duration
	// ConfirmationTTL bounds how long an unconsumed redis 2FA confirmation lives
	ConfirmationTTL time.Duration
}

// NewStores creates the token and confirmation stores for a persistence type
func NewStores(persistenceType string, config StoreConfig) (Store, ConfirmationStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, nil, fmt.Errorf("db required for postgres token store")
		}
		return NewPostgresStore(config.DB), NewPostgresConfirmationStore(config.DB), nil
	case "redis":
		if config.Redis == nil {
			return nil, nil, fmt.Errorf("redis client required for redis token store")
		}
		store := NewRedisStore(config.Redis,
			WithKeyPrefix(config.KeyPrefix),
			WithExpiredRetention(config.ExpiredRetention),
		)
		return store, NewRedisConfirmationStore(config.Redis, config.KeyPrefix, config.ConfirmationTTL), nil
	case "memory", "inmem":
		return NewMemoryStore(), NewMemoryConfirmationStore(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported token store type: %s (supported: postgres, redis, memory)", persistenceType)
	}
}
