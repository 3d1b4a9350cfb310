// Package cache implements the Cache Layer (C4): a write-through,
// per-document, namespaced cache with selection-aware keys, backed by the
// external adapter.Cache contract.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/docbase/internal/adapter"
	"github.com/kailas-cloud/docbase/internal/domain"
)

// Layer wraps an adapter.Cache, computing keys per §6's format and
// collapsing concurrent misses for the same key with singleflight — the
// same de-duplication idiom the teacher stack's embedding cache decorator
// uses around its backing store.
type Layer struct {
	backend   adapter.Cache
	namespace string
	ttl       int
	group     singleflight.Group
}

// New builds a Layer with the given default TTL (seconds); a zero or
// negative ttl falls back to domain.DefaultCacheTTLSeconds.
func New(backend adapter.Cache, namespace string, ttl int) *Layer {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTLSeconds
	}
	return &Layer{backend: backend, namespace: namespace, ttl: ttl}
}

// Key builds `cache-{namespace}:{collection}:{docId}:{selectionHash|"*"}`.
// selections is hashed (order-independent) when non-empty; an empty
// selection list uses the literal wildcard suffix.
func (l *Layer) Key(collection, docID string, selections []string) string {
	suffix := "*"
	if len(selections) > 0 {
		suffix = selectionHash(selections)
	}
	return fmt.Sprintf("cache-%s:%s:%s:%s", l.namespace, collection, docID, suffix)
}

func selectionHash(selections []string) string {
	sorted := append([]string(nil), selections...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:16]
}

// Load attempts to read key, de-duplicating concurrent loads for the same
// key across goroutines.
func (l *Layer) Load(ctx context.Context, key string) (string, bool, error) {
	v, err, _ := l.group.Do(key, func() (any, error) {
		val, ok, err := l.backend.Load(ctx, key, l.ttl)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errMiss
		}
		return val, nil
	})
	if err == errMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.(string), true, nil
}

var errMiss = fmt.Errorf("cache: miss")

// Save writes value under key with the layer's default TTL.
func (l *Layer) Save(ctx context.Context, key, value string) error {
	return l.backend.Save(ctx, key, value, l.ttl)
}

// PurgeDocument purges the entire key family for (collection, docID),
// matching invariant 4: after any update/increase/decrease/delete, every
// key matching cache-{ns}:{collection}:{docId}:* is absent.
func (l *Layer) PurgeDocument(ctx context.Context, collection, docID string) error {
	pattern := fmt.Sprintf("cache-%s:%s:%s:*", l.namespace, collection, docID)
	return l.backend.Purge(ctx, pattern)
}

// PurgeCollection purges every cached document belonging to collection.
func (l *Layer) PurgeCollection(ctx context.Context, collection string) error {
	pattern := fmt.Sprintf("cache-%s:%s:*", l.namespace, collection)
	return l.backend.Purge(ctx, pattern)
}
