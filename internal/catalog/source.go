// Package catalog serves the make and model lists shown as interactive
// selections, paginated to the provider's row limit.
package catalog

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// Source is a read-only view over the externally maintained catalog lists.
type Source interface {
	// Items returns the list entries of key in [start, stop], inclusive.
	Items(ctx context.Context, key string, start, stop int64) ([]string, error)
	// Size returns the total number of entries under key.
	Size(ctx context.Context, key string) (int64, error)
}

// RedisSource reads catalog lists maintained by the ingestion jobs.
type RedisSource struct {
	client *backend.Client
	prefix string
}

// SourceOption configures a RedisSource.
type SourceOption func(*RedisSource)

// WithKeyPrefix sets the prefix prepended to every catalog key.
func WithKeyPrefix(prefix string) SourceOption {
	return func(s *RedisSource) {
		s.prefix = prefix
	}
}

// NewRedisSource creates a source with its own client.
func NewRedisSource(address, password string, db int, opts ...SourceOption) *RedisSource {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisSourceFromClient(rdb, opts...)
}

// NewRedisSourceFromClient creates a source from an existing client.
func NewRedisSourceFromClient(client *backend.Client, opts ...SourceOption) *RedisSource {
	src := &RedisSource{client: client}
	for _, opt := range opts {
		opt(src)
	}
	return src
}

func (s *RedisSource) key(name string) string {
	return s.prefix + name
}

// Items returns the entries of the list in [start, stop], inclusive.
func (s *RedisSource) Items(ctx context.Context, key string, start, stop int64) ([]string, error) {
	items, err := s.client.LRange(ctx, s.key(key), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", key, err)
	}
	return items, nil
}

// Size returns the length of the list. A missing key has size zero.
func (s *RedisSource) Size(ctx context.Context, key string) (int64, error) {
	size, err := s.client.LLen(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to size catalog %s: %w", key, err)
	}
	return size, nil
}

// Close closes the underlying client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
