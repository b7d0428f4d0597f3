package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
)

// Entry is one key-value write. A nil Value deletes the key.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the byte-level backend under a [KVStore].
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Write applies all entries atomically: either every entry is visible
	// afterwards or none is.
	Write(ctx context.Context, entries []Entry) error
	// Scan returns the keys starting with prefix in sorted order.
	Scan(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// KVStore implements [Store] on a [KV] backend.
//
// Each reference has a revision list ("<base>/revs", newline separated,
// oldest first) and one data key per revision ("<base>/rev/<rev>").
type KVStore struct {
	name string
	kv   KV
	mu   sync.Mutex // serializes revision list updates
}

var _ Store = (*KVStore)(nil)

// New creates a store named name on kv.
func New(name string, kv KV) *KVStore {
	return &KVStore{name: name, kv: kv}
}

// NewMemory creates an in-memory store.
func NewMemory() *KVStore {
	return New("memory", NewMemoryKV())
}

// Name implements [Store].
func (s *KVStore) Name() string { return s.name }

// Close implements [Store].
func (s *KVStore) Close() error { return s.kv.Close() }

func recipeBase(r ref.Reference) string { return "recipe/" + r.WithoutRevision().String() }

func packageBase(p ref.PackageReference) string {
	return "pkg/" + p.Ref.WithoutRevision().String() + ":" + p.PackageID
}

func (s *KVStore) revisions(ctx context.Context, base string) ([]string, error) {
	data, ok, err := s.kv.Get(ctx, base+"/revs")
	if err != nil || !ok || len(data) == 0 {
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}

// resolve returns the requested revision if it is stored, or the latest one.
func (s *KVStore) resolve(ctx context.Context, base, want string) (string, bool, error) {
	revs, err := s.revisions(ctx, base)
	if err != nil || len(revs) == 0 {
		return "", false, err
	}
	if want == "" {
		return revs[len(revs)-1], true, nil
	}
	return want, slices.Contains(revs, want), nil
}

func (s *KVStore) put(ctx context.Context, base string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if data == nil {
		data = []byte{}
	}
	rev := Revision(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	revs, err := s.revisions(ctx, base)
	if err != nil {
		return "", err
	}
	revs = slices.DeleteFunc(revs, func(r string) bool { return r == rev })
	revs = append(revs, rev)
	err = s.kv.Write(ctx, []Entry{
		{Key: base + "/rev/" + rev, Value: data},
		{Key: base + "/revs", Value: []byte(strings.Join(revs, "\n"))},
	})
	if err != nil {
		return "", err
	}
	return rev, nil
}

func (s *KVStore) fetch(ctx context.Context, base, want, what string) ([]byte, string, error) {
	rev, ok, err := s.resolve(ctx, base, want)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", errors.New(errors.ErrCodeNotFound, "%s not found in %s", what, s.name)
	}
	data, ok, err := s.kv.Get(ctx, base+"/rev/"+rev)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", errors.New(errors.ErrCodeInternal, "%s: revision %s is listed but has no data", what, rev)
	}
	return data, rev, nil
}

// Exists implements [Store].
func (s *KVStore) Exists(ctx context.Context, r ref.Reference) (rev string, ok bool, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "exists", start, err) }(time.Now())
	return s.resolve(ctx, recipeBase(r), r.Revision)
}

// ListRevisions implements [Store].
func (s *KVStore) ListRevisions(ctx context.Context, r ref.Reference) ([]string, error) {
	return s.revisions(ctx, recipeBase(r))
}

// List implements [Store].
func (s *KVStore) List(ctx context.Context, name string) (out []ref.Reference, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "list", start, err) }(time.Now())
	keys, err := s.kv.Scan(ctx, "recipe/"+name+"/")
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if !strings.HasSuffix(k, "/revs") {
			continue
		}
		r, err := ref.Parse(strings.TrimSuffix(strings.TrimPrefix(k, "recipe/"), "/revs"))
		if err != nil || r.Name != name {
			continue
		}
		rev, ok, err := s.resolve(ctx, recipeBase(r), "")
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r.WithRevision(rev))
		}
	}
	slices.SortFunc(out, ref.Reference.Compare)
	return out, nil
}

// Fetch implements [Store].
func (s *KVStore) Fetch(ctx context.Context, r ref.Reference) (data []byte, got ref.Reference, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "fetch", start, err) }(time.Now())
	data, rev, err := s.fetch(ctx, recipeBase(r), r.Revision, r.Repr())
	if err != nil {
		return nil, ref.Reference{}, err
	}
	return data, r.WithRevision(rev), nil
}

// Put implements [Store].
func (s *KVStore) Put(ctx context.Context, r ref.Reference, data []byte) (rev string, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "put", start, err) }(time.Now())
	return s.put(ctx, recipeBase(r), data)
}

// ExistsPackage implements [Store].
func (s *KVStore) ExistsPackage(ctx context.Context, p ref.PackageReference) (prev string, ok bool, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "exists_package", start, err) }(time.Now())
	return s.resolve(ctx, packageBase(p), p.Revision)
}

// ListPackages implements [Store].
func (s *KVStore) ListPackages(ctx context.Context, r ref.Reference) ([]string, error) {
	prefix := "pkg/" + r.WithoutRevision().String() + ":"
	keys, err := s.kv.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, k := range keys {
		if id, ok := strings.CutSuffix(strings.TrimPrefix(k, prefix), "/revs"); ok && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FetchPackage implements [Store].
func (s *KVStore) FetchPackage(ctx context.Context, p ref.PackageReference) (data []byte, got ref.PackageReference, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "fetch_package", start, err) }(time.Now())
	data, prev, err := s.fetch(ctx, packageBase(p), p.Revision, p.Repr())
	if err != nil {
		return nil, ref.PackageReference{}, err
	}
	return data, p.WithRevision(prev), nil
}

// PutPackage implements [Store].
func (s *KVStore) PutPackage(ctx context.Context, p ref.PackageReference, data []byte) (prev string, err error) {
	defer func(start time.Time) { observe(ctx, s.name, "put_package", start, err) }(time.Now())
	return s.put(ctx, packageBase(p), data)
}

// RemovePackage implements [Store]. Without a revision every revision of
// the package is removed. Removing an absent package is not an error.
func (s *KVStore) RemovePackage(ctx context.Context, p ref.PackageReference) error {
	base := packageBase(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	revs, err := s.revisions(ctx, base)
	if err != nil || len(revs) == 0 {
		return err
	}
	var entries []Entry
	keep := revs[:0:0]
	for _, rev := range revs {
		if p.Revision == "" || rev == p.Revision {
			entries = append(entries, Entry{Key: base + "/rev/" + rev})
		} else {
			keep = append(keep, rev)
		}
	}
	if len(keep) == 0 {
		entries = append(entries, Entry{Key: base + "/revs"})
	} else {
		entries = append(entries, Entry{Key: base + "/revs", Value: []byte(strings.Join(keep, "\n"))})
	}
	// Cleanup must run even when the caller's context is already cancelled.
	return s.kv.Write(context.WithoutCancel(ctx), entries)
}

// MemoryKV is an in-memory [KV].
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get implements [KV].
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return slices.Clone(v), ok, nil
}

// Write implements [KV].
func (m *MemoryKV) Write(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if e.Value == nil {
			delete(m.data, e.Key)
		} else {
			m.data[e.Key] = slices.Clone(e.Value)
		}
	}
	return nil
}

// Scan implements [KV].
func (m *MemoryKV) Scan(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(m.data)) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close implements [KV].
func (m *MemoryKV) Close() error { return nil }
