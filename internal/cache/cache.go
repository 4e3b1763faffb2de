package cache

import (
	"context"
	"time"
)

// Cache interface for caching operations
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes all values matching a pattern (e.g., "cache:reference:*")
	DeleteByPattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}

// Key prefixes
const (
	// KeyPrefixReference is the prefix for parsed reference datasets
	KeyPrefixReference = "cache:reference"

	// KeyPrefixJobStatus is the prefix for job status lookups
	KeyPrefixJobStatus = "cache:job:status"
)

// TTL configurations for different cache types
const (
	// TTLReference is the TTL for parsed reference datasets. Spreadsheets
	// change rarely, so an hour saves re-parsing across jobs.
	TTLReference = time.Hour

	// TTLJobStatus is the TTL for job status lookups
	TTLJobStatus = 5 * time.Second
)
