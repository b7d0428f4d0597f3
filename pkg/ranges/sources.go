package ranges

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/stackforge/pkg/cache"
	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// StoreSource lists versions held by a store.
type StoreSource struct {
	st store.Store
}

// NewStoreSource wraps st as a Source.
func NewStoreSource(st store.Store) *StoreSource { return &StoreSource{st: st} }

// Name implements [Source].
func (s *StoreSource) Name() string { return s.st.Name() }

// Versions implements [Source].
func (s *StoreSource) Versions(ctx context.Context, name string) ([]ref.Reference, error) {
	return s.st.List(ctx, name)
}

// MultiSource lists the versions of several sources in order. Equal
// versions are kept, so the first source wins when picking among them.
type MultiSource []Source

// Name implements [Source].
func (m MultiSource) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Versions implements [Source].
func (m MultiSource) Versions(ctx context.Context, name string) ([]ref.Reference, error) {
	var out []ref.Reference
	for _, s := range m {
		refs, err := s.Versions(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		out = append(out, refs...)
	}
	return out, nil
}

// CachedSource caches the listings of another source.
type CachedSource struct {
	src   Source
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCachedSource wraps src. A nil keyer uses [cache.DefaultKeyer]; a
// non-positive ttl uses [cache.TTLVersions].
func NewCachedSource(src Source, c cache.Cache, keyer cache.Keyer, ttl time.Duration) *CachedSource {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if ttl <= 0 {
		ttl = cache.TTLVersions
	}
	return &CachedSource{src: src, cache: c, keyer: keyer, ttl: ttl}
}

// Name implements [Source].
func (s *CachedSource) Name() string { return s.src.Name() }

// Versions implements [Source]. Cache failures fall through to the wrapped
// source.
func (s *CachedSource) Versions(ctx context.Context, name string) ([]ref.Reference, error) {
	key := s.keyer.VersionsKey(s.src.Name(), name)
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		if refs, err := decodeRefs(data); err == nil {
			observability.Cache().OnCacheHit(ctx, "versions")
			return refs, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "versions")

	refs, err := s.src.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	if data, err := encodeRefs(refs); err == nil {
		if s.cache.Set(ctx, key, data, s.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "versions", len(data))
		}
	}
	return refs, nil
}

func encodeRefs(refs []ref.Reference) ([]byte, error) {
	raw := make([]string, len(refs))
	for i, r := range refs {
		raw[i] = r.Repr()
	}
	return json.Marshal(raw)
}

func decodeRefs(data []byte) ([]ref.Reference, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]ref.Reference, 0, len(raw))
	for _, s := range raw {
		r, err := ref.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
