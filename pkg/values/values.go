// Package values implements option and setting values with pattern-scoped
// assignments.
//
// Options and settings are both flat maps of dotted keys to string values.
// They are never edited in place by precedence rules: a node's values are the
// result of replaying an ordered list of [Assignment]s through [Merge], which
// also records which assignment produced each value.
//
// # Precedence
//
// Assignments are applied in order and the last matching one wins, with two
// exceptions:
//
//   - an important assignment ("key!=value") is only replaced by another
//     important assignment;
//   - a direct assignment on the consumer ("key=value" or "&:key=value") is not
//     replaced by a later wildcard pattern, only by a later pattern naming the
//     consumer explicitly.
//
// # Example
//
//	as, _ := values.ParseAssignments([]string{"*:shared=True", "pkga:shared=False"}, values.OriginCLI, "")
//	v, _ := values.Merge(nil, as, ref.MustParse("pkga/1.0"), false)
//	v.GetSafe("shared", "") // "False"
package values

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
)

// Change records one assignment that produced a value.
type Change struct {
	Key       string
	Value     string
	Pattern   string
	Important bool
	Origin    Origin
	Source    string
	Removed   bool
}

// Values is an ordered mapping of dotted keys to values with a provenance
// log. The zero value is not usable; use [New].
type Values struct {
	data    map[string]string
	removed map[string]bool
	changes map[string][]Change
}

// New creates an empty Values.
func New() *Values {
	return &Values{
		data:    make(map[string]string),
		removed: make(map[string]bool),
		changes: make(map[string][]Change),
	}
}

// FromMap creates Values from a plain map. Every entry is recorded as a
// default.
func FromMap(m map[string]string) *Values {
	v := New()
	for k, val := range m {
		v.Set(k, val)
	}
	return v
}

// Set assigns key directly and records it as a default.
func (v *Values) Set(key, value string) {
	v.apply(Change{Key: key, Value: value})
}

func (v *Values) apply(c Change) {
	if c.Removed {
		delete(v.data, c.Key)
		v.removed[c.Key] = true
	} else {
		v.data[c.Key] = c.Value
		delete(v.removed, c.Key)
	}
	v.changes[c.Key] = append(v.changes[c.Key], c)
}

// Get returns the value of key. Reading a key that was removed or never set
// fails with code VALUE_NOT_DEFINED.
func (v *Values) Get(key string) (string, error) {
	val, ok := v.data[key]
	if !ok {
		if v.removed[key] {
			return "", errors.New(errors.ErrCodeValueNotDefined, "%q was removed", key)
		}
		return "", errors.New(errors.ErrCodeValueNotDefined, "%q is not defined", key)
	}
	return val, nil
}

// GetSafe returns the value of key, or def when it is not defined.
func (v *Values) GetSafe(key, def string) string {
	if val, ok := v.data[key]; ok {
		return val
	}
	return def
}

// Has reports whether key is defined.
func (v *Values) Has(key string) bool {
	_, ok := v.data[key]
	return ok
}

// Remove deletes key and all of its sub-keys ("compiler" also removes
// "compiler.version"). Removing an absent key is not an error.
func (v *Values) Remove(key string) {
	for k := range v.data {
		if k == key || strings.HasPrefix(k, key+".") {
			v.apply(Change{Key: k, Removed: true})
		}
	}
	v.removed[key] = true
}

// RemoveSafe removes every listed key.
func (v *Values) RemoveSafe(keys ...string) {
	for _, k := range keys {
		v.Remove(k)
	}
}

// Len returns the number of defined keys.
func (v *Values) Len() int { return len(v.data) }

// Keys returns the defined keys in sorted order.
func (v *Values) Keys() []string {
	return slices.Sorted(maps.Keys(v.data))
}

// Map returns a copy of the defined values.
func (v *Values) Map() map[string]string {
	return maps.Clone(v.data)
}

// Explain returns the provenance log for key, oldest first.
func (v *Values) Explain(key string) []Change {
	return slices.Clone(v.changes[key])
}

// Winner returns the change that produced the current value of key.
func (v *Values) Winner(key string) (Change, bool) {
	cs := v.changes[key]
	if len(cs) == 0 || !v.Has(key) {
		return Change{}, false
	}
	return cs[len(cs)-1], true
}

// Clone returns a deep copy.
func (v *Values) Clone() *Values {
	c := New()
	if v == nil {
		return c
	}
	c.data = maps.Clone(v.data)
	c.removed = maps.Clone(v.removed)
	for k, cs := range v.changes {
		c.changes[k] = slices.Clone(cs)
	}
	return c
}

// Equal reports whether v and o define the same keys with the same values.
// Provenance is ignored.
func (v *Values) Equal(o *Values) bool {
	return maps.Equal(v.data, o.data)
}

// String returns a canonical "k1=v1;k2=v2" rendering with sorted keys. It is
// used as part of node identity keys.
func (v *Values) String() string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	for i, k := range v.Keys() {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v.data[k])
	}
	return b.String()
}

// Prefixed returns the values whose keys start with prefix, with the prefix
// removed.
func (v *Values) Prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	for k, val := range v.data {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			out[rest] = val
		}
	}
	return out
}
