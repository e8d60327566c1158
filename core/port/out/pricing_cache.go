package out

import (
	"context"
	"time"
)

// Cache is a TTL'd JSON cache (resolved prices, recent mailbox searches).
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
