package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper tracks processed product folder keys in Redis so reruns over
// the same shop skip screenshots that already went through OCR.
type Deduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DedupeConfig holds deduper configuration
type DedupeConfig struct {
	RedisURL  string
	RedisAddr string
	Password  string
	DB        int
	Prefix    string
	TTL       time.Duration
}

// NewDeduper creates a Redis-backed deduplicator
func NewDeduper(cfg *DedupeConfig) (*Deduper, error) {
	var client *redis.Client

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opt.PoolSize = 10
		opt.MinIdleConns = 2
		opt.DialTimeout = 5 * time.Second
		opt.ReadTimeout = 3 * time.Second
		opt.WriteTimeout = 3 * time.Second
		client = redis.NewClient(opt)
	} else if cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
	} else {
		return nil, fmt.Errorf("redis URL or address is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "label"
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &Deduper{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewDeduperFromClient wraps an existing Redis connection, typically the
// one the worker already holds for caching.
func NewDeduperFromClient(client *redis.Client, prefix string, ttl time.Duration) *Deduper {
	if prefix == "" {
		prefix = "label"
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{client: client, prefix: prefix, ttl: ttl}
}

// IsDuplicate atomically claims a product folder key. The first caller
// gets false and owns the key until the TTL expires; later callers get
// true.
func (d *Deduper) IsDuplicate(ctx context.Context, folderKey string) (bool, error) {
	key := fmt.Sprintf("%s:product:%s", d.prefix, folderKey)

	wasSet, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return !wasSet, nil
}

// MarkAsSeen claims a folder key without reporting its prior state
func (d *Deduper) MarkAsSeen(ctx context.Context, folderKey string) error {
	key := fmt.Sprintf("%s:product:%s", d.prefix, folderKey)
	return d.client.Set(ctx, key, 1, d.ttl).Err()
}

// Clear removes all dedup keys (use with caution)
func (d *Deduper) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:*", d.prefix)

	iter := d.client.Scan(ctx, 0, pattern, 1000).Iterator()
	for iter.Next(ctx) {
		if err := d.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Stats counts currently claimed product keys
func (d *Deduper) Stats(ctx context.Context) (int64, error) {
	pattern := fmt.Sprintf("%s:product:*", d.prefix)

	var count int64
	iter := d.client.Scan(ctx, 0, pattern, 1000).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

// Close closes the Redis connection
func (d *Deduper) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
