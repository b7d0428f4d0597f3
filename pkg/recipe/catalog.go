package recipe

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// Catalog is an in-memory [Evaluator] that also lists the versions it
// holds, so it can serve as a version source.
type Catalog struct {
	name string

	mu      sync.RWMutex
	recipes map[string]catalogEntry // reference without revision -> entry
}

type catalogEntry struct {
	ref    ref.Reference
	recipe Recipe
}

// NewCatalog creates an empty catalog.
func NewCatalog(name string) *Catalog {
	return &Catalog{name: name, recipes: make(map[string]catalogEntry)}
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Add registers rec under r and returns r with its revision. Without an
// explicit revision, one is derived from the reference.
func (c *Catalog) Add(r ref.Reference, rec Recipe) ref.Reference {
	if r.Revision == "" {
		r = r.WithRevision(store.Revision([]byte(r.Repr())))
	}
	c.mu.Lock()
	c.recipes[r.WithoutRevision().String()] = catalogEntry{ref: r, recipe: rec}
	c.mu.Unlock()
	return r
}

// AddFunc registers a [Func] recipe parsed from a reference string. It
// panics on an invalid reference.
func (c *Catalog) AddFunc(s string, f *Func) ref.Reference {
	if f == nil {
		f = &Func{}
	}
	return c.Add(ref.MustParse(s), f)
}

// Load implements [Evaluator]. A reference pinning a different revision is
// not found.
func (c *Catalog) Load(ctx context.Context, r ref.Reference) (Recipe, ref.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, ref.Reference{}, err
	}
	c.mu.RLock()
	e, ok := c.recipes[r.WithoutRevision().String()]
	c.mu.RUnlock()
	if !ok || (r.Revision != "" && r.Revision != e.ref.Revision) {
		return nil, ref.Reference{}, errors.New(errors.ErrCodeNotFound, "recipe %s not found in %s", r.Repr(), c.name)
	}
	return e.recipe, e.ref, nil
}

// Versions returns every reference named name, oldest first.
func (c *Catalog) Versions(ctx context.Context, name string) ([]ref.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	var out []ref.Reference
	for _, e := range c.recipes {
		if e.ref.Name == name {
			out = append(out, e.ref)
		}
	}
	c.mu.RUnlock()
	slices.SortFunc(out, ref.Reference.Compare)
	return out, nil
}

var _ Evaluator = (*Catalog)(nil)

// Chain tries each evaluator in order and returns the first recipe found.
// Errors other than NOT_FOUND stop the search.
type Chain []Evaluator

// Load implements [Evaluator].
func (c Chain) Load(ctx context.Context, r ref.Reference) (Recipe, ref.Reference, error) {
	err := error(errors.New(errors.ErrCodeNotFound, "recipe %s not found", r.Repr()))
	for _, ev := range c {
		rec, got, lerr := ev.Load(ctx, r)
		if lerr == nil {
			return rec, got, nil
		}
		if !errors.Is(lerr, errors.ErrCodeNotFound) {
			return nil, ref.Reference{}, lerr
		}
		err = lerr
	}
	return nil, ref.Reference{}, err
}
