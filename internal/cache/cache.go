package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a minimal interface for a key/value cache. Values are stored
// as raw bytes, which callers marshal/unmarshal as needed. Backed by
// Redis in production and by fakes in tests.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ListingTTL is how long cached account listings stay valid. The cache
// is dropped eagerly on any account write, so this bounds staleness
// only for readers between writes.
const ListingTTL = 300 * time.Second

// AllUsersKey holds the serialized listing of every account.
const AllUsersKey = "all_users"

// UserKey returns the cache key for a single account.
func UserKey(id int64) string {
	return fmt.Sprintf("user_%d", id)
}
