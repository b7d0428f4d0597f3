package store

import (
	"context"
	"time"

	"github.com/matzehuels/stackforge/pkg/cache"
	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/ref"
)

// CachedStore remembers positive binary existence checks of a remote
// store. Negative answers are never cached, so a binary uploaded in the
// meantime is found on the next run.
type CachedStore struct {
	Store
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCachedStore wraps st. A nil keyer uses [cache.DefaultKeyer]; a
// non-positive ttl uses [cache.TTLExists].
func NewCachedStore(st Store, c cache.Cache, keyer cache.Keyer, ttl time.Duration) *CachedStore {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if ttl <= 0 {
		ttl = cache.TTLExists
	}
	return &CachedStore{Store: st, cache: c, keyer: keyer, ttl: ttl}
}

// ExistsPackage implements [Store].
func (s *CachedStore) ExistsPackage(ctx context.Context, p ref.PackageReference) (string, bool, error) {
	key := s.keyer.ExistsKey(s.Name(), p.Repr())
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "exists")
		return string(data), true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "exists")

	prev, ok, err := s.Store.ExistsPackage(ctx, p)
	if err != nil || !ok {
		return prev, ok, err
	}
	if s.cache.Set(ctx, key, []byte(prev), s.ttl) == nil {
		observability.Cache().OnCacheSet(ctx, "exists", len(prev))
	}
	return prev, true, nil
}

// RemovePackage implements [Store] and forgets the cached answer.
func (s *CachedStore) RemovePackage(ctx context.Context, p ref.PackageReference) error {
	_ = s.cache.Delete(ctx, s.keyer.ExistsKey(s.Name(), p.Repr()))
	return s.Store.RemovePackage(ctx, p)
}
