// Package cache provides the byte cache used for remote version listings and
// binary existence checks.
//
// Three backends implement [Cache]: [FileCache] under the user cache
// directory, [RedisCache] for shared caches, and [NullCache] to disable
// caching. Keys are built by a [Keyer] so that every backend uses the same
// layout.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values.
const (
	TTLVersions = 10 * time.Minute // remote version listings
	TTLExists   = time.Hour        // positive binary existence checks
)

// Cache stores opaque bytes with an optional time-to-live.
type Cache interface {
	// Get returns the cached data and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is a cache that can drop all of its entries.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Keyer builds cache keys.
type Keyer interface {
	// VersionsKey is the key of the version listing of name on source.
	VersionsKey(source, name string) string
	// ExistsKey is the key of the existence of a binary on source.
	ExistsKey(source, pref string) string
}

// DefaultKeyer builds plain "kind:source:subject" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// VersionsKey implements [Keyer].
func (DefaultKeyer) VersionsKey(source, name string) string {
	return "versions:" + source + ":" + name
}

// ExistsKey implements [Keyer]. The reference is hashed to keep keys short.
func (DefaultKeyer) ExistsKey(source, pref string) string {
	return hashKey("exists", source, pref)
}
