// Package lockfile pins the references a graph resolved to, so later builds
// reproduce them.
//
// The file is JSON:
//
//	{
//	  "version": "0.5",
//	  "requires": ["zlib/1.3#a1b2...", "zlib/1.2#c3d4..."],
//	  "build_requires": ["cmake/3.27#e5f6..."],
//	  "packages": {"zlib/1.3#a1b2...": "9f8e..."}
//	}
//
// Entries are kept sorted by name, then by version from newest to oldest, so
// the first entry admitted by a range is the highest locked version.
//
// A Lockfile implements the lock interface of the range resolver: ranges are
// answered from the file, and references resolved while building are
// recorded into it. In strict mode a name the file does not hold fails with
// LOCK_MISMATCH instead.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/version"
)

// Version is the file format version written by Save.
const Version = "0.5"

// Lockfile is a set of pinned references per context, plus the package
// identities computed for them. It is safe for concurrent use.
type Lockfile struct {
	// Strict makes Resolve fail for names the file does not hold.
	Strict bool

	mu       sync.Mutex
	requires map[requirement.Context][]ref.Reference
	packages map[string]string // reference with revision -> package ID
}

type document struct {
	Version       string            `json:"version"`
	Requires      []string          `json:"requires"`
	BuildRequires []string          `json:"build_requires"`
	Packages      map[string]string `json:"packages,omitempty"`
}

// New creates an empty lock file.
func New() *Lockfile {
	return &Lockfile{
		requires: make(map[requirement.Context][]ref.Reference),
		packages: make(map[string]string),
	}
}

// Load reads a lock file from path.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "lock file %s not found", path)
		}
		return nil, fmt.Errorf("read lock file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a lock file.
func Parse(data []byte) (*Lockfile, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode lock file")
	}
	if doc.Version != Version {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported lock file version %q, expected %q", doc.Version, Version)
	}

	l := New()
	for ctx, items := range map[requirement.Context][]string{requirement.Host: doc.Requires, requirement.Build: doc.BuildRequires} {
		for _, s := range items {
			r, err := ref.Parse(s)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "lock file entry %q", s)
			}
			l.add(r, ctx)
		}
	}
	for r, id := range doc.Packages {
		l.packages[r] = id
	}
	return l, nil
}

// Add records every resolved reference of g.
func (l *Lockfile) Add(g *graph.DepsGraph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range g.Nodes() {
		if n.Virtual {
			continue
		}
		l.add(n.Ref, n.Context)
	}
}

// AddPackage records the package ID computed for r.
func (l *Lockfile) AddPackage(r ref.Reference, packageID string) {
	l.mu.Lock()
	l.packages[r.Repr()] = packageID
	l.mu.Unlock()
}

// PackageID returns the package ID recorded for r.
func (l *Lockfile) PackageID(r ref.Reference) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.packages[r.Repr()]
	return id, ok
}

// Update replaces every entry for the name of r in ctx with r.
func (l *Lockfile) Update(r ref.Reference, ctx requirement.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requires[ctx] = slices.DeleteFunc(l.requires[ctx], func(o ref.Reference) bool {
		if o.Name != r.Name {
			return false
		}
		delete(l.packages, o.Repr())
		return true
	})
	l.add(r, ctx)
}

// Resolve returns the highest locked reference for name in ctx admitted by
// rng. It reports ok=false when there is none, unless the file is strict.
func (l *Lockfile) Resolve(name string, ctx requirement.Context, rng version.Range) (ref.Reference, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held := false
	for _, r := range l.requires[ctx] {
		if r.Name != name {
			continue
		}
		held = true
		if rng.Contains(r.Version) {
			return r, true, nil
		}
	}
	if !l.Strict {
		return ref.Reference{}, false, nil
	}
	if held {
		return ref.Reference{}, false, errors.New(errors.ErrCodeLockMismatch,
			"no locked version of %s satisfies %s", name, rng).WithRefs(name)
	}
	return ref.Reference{}, false, errors.New(errors.ErrCodeLockMismatch,
		"%s is not in the lock file", name).WithRefs(name)
}

// Record adds a reference resolved outside the lock. A strict lock is left
// unchanged.
func (l *Lockfile) Record(r ref.Reference, ctx requirement.Context) {
	if l.Strict {
		return
	}
	l.mu.Lock()
	l.add(r, ctx)
	l.mu.Unlock()
}

// Requires returns the locked references of ctx in file order.
func (l *Lockfile) Requires(ctx requirement.Context) []ref.Reference {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.requires[ctx])
}

// add inserts r keeping the order. An entry for the same reference is
// replaced, so a newer revision wins.
func (l *Lockfile) add(r ref.Reference, ctx requirement.Context) {
	list := l.requires[ctx]
	for i, o := range list {
		if o.WithoutRevision().Equal(r.WithoutRevision()) {
			if r.Revision != "" {
				list[i] = r
			}
			return
		}
	}
	i, _ := slices.BinarySearchFunc(list, r, compare)
	l.requires[ctx] = slices.Insert(list, i, r)
}

// compare orders by name, then by version from newest to oldest.
func compare(a, b ref.Reference) int {
	if a.Name != b.Name {
		if a.Name < b.Name {
			return -1
		}
		return 1
	}
	if c := b.Version.Compare(a.Version); c != 0 {
		return c
	}
	return b.Compare(a)
}

// Marshal encodes the lock file as indented JSON.
func (l *Lockfile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes the lock file as indented JSON to w.
func (l *Lockfile) Write(w io.Writer) error {
	l.mu.Lock()
	doc := document{
		Version:       Version,
		Requires:      reprs(l.requires[requirement.Host]),
		BuildRequires: reprs(l.requires[requirement.Build]),
		Packages:      l.packages,
	}
	defer l.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}
	return nil
}

// Save writes the lock file to path, replacing it atomically.
func (l *Lockfile) Save(path string) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock file directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lock-*")
	if err != nil {
		return fmt.Errorf("save lock file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save lock file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func reprs(refs []ref.Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Repr()
	}
	return out
}
