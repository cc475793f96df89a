package port

import (
	"context"
	"errors"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=../../../../mocks/mock_cache.go -package=mocks

// Cache defines the minimal contract for a key-value cache used by the application.
// Implementations must be concurrency-safe.
type Cache interface {
	// Get fetches the value for key, returning ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes one or more keys and returns the number of keys removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss lets callers tell a cache miss apart from transport errors.
var ErrMiss = errors.New("cache: miss")
