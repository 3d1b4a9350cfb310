package adapter

import "context"

// Cache is the external write-through cache contract (§6). Keys follow the
// cache-{namespace}:{collection}:{docId}:{selectionHash|"*"} format; Purge
// accepts a trailing "*" as a wildcard suffix.
type Cache interface {
	Load(ctx context.Context, key string, ttlSeconds int) (string, bool, error)
	Save(ctx context.Context, key string, value string, ttlSeconds int) error
	Purge(ctx context.Context, keyPattern string) error
}
