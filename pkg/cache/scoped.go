package cache

// ScopedKeyer wraps a Keyer with a prefix, so that several stores can share
// one Redis instance without seeing each other's entries.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "ci:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// VersionsKey generates a prefixed version listing key.
func (k *ScopedKeyer) VersionsKey(source, name string) string {
	return k.prefix + k.inner.VersionsKey(source, name)
}

// ExistsKey generates a prefixed existence key.
func (k *ScopedKeyer) ExistsKey(source, pref string) string {
	return k.prefix + k.inner.ExistsKey(source, pref)
}
