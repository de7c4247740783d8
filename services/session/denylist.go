package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyStore is the subset of the redis client the denylist uses
type keyStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDenylist stores revoked token ids as keys that expire with the token
type RedisDenylist struct {
	client keyStore
	prefix string
}

// NewRedisDenylist creates a denylist under the given key prefix
func NewRedisDenylist(client *redis.Client, prefix string) *RedisDenylist {
	return newRedisDenylist(client, prefix)
}

func newRedisDenylist(client keyStore, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = "session:revoked"
	}
	return &RedisDenylist{client: client, prefix: prefix}
}

// Add marks jti as revoked for ttl
func (d *RedisDenylist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	return d.client.Set(ctx, d.key(jti), 1, ttl).Err()
}

// Contains reports whether jti is revoked
func (d *RedisDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDenylist) key(jti string) string {
	return d.prefix + ":" + jti
}
