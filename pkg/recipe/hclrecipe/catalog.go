package hclrecipe

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// Catalog loads recipes from a directory laid out as
// <root>/<name>/<version>/recipe.hcl. Revisions are content hashes of the
// recipe files.
type Catalog struct {
	root string
	name string

	mu     sync.Mutex
	parsed map[string]*Recipe // reference with revision -> recipe
}

var _ recipe.Evaluator = (*Catalog)(nil)

// NewCatalog creates a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{root: dir, name: filepath.Base(dir), parsed: make(map[string]*Recipe)}
}

// Name returns the catalog name, the base name of its directory.
func (c *Catalog) Name() string { return c.name }

// Path returns the recipe file path for r.
func (c *Catalog) Path(r ref.Reference) string {
	return filepath.Join(c.root, r.Name, r.Version.String(), FileName)
}

// Read returns the recipe source for r and its revision.
func (c *Catalog) Read(r ref.Reference) ([]byte, ref.Reference, error) {
	if r.User != "" || r.Channel != "" {
		return nil, ref.Reference{}, errors.New(errors.ErrCodeNotFound, "recipe %s not found in %s: catalogs hold no user/channel recipes", r.Repr(), c.name)
	}
	src, err := os.ReadFile(c.Path(r))
	if os.IsNotExist(err) {
		return nil, ref.Reference{}, errors.New(errors.ErrCodeNotFound, "recipe %s not found in %s", r.Repr(), c.name)
	}
	if err != nil {
		return nil, ref.Reference{}, errors.Wrap(errors.ErrCodeInternal, err, "read recipe %s", r)
	}
	rev := store.Revision(src)
	if r.Revision != "" && r.Revision != rev {
		return nil, ref.Reference{}, errors.New(errors.ErrCodeNotFound, "recipe %s not found in %s: latest revision is %s", r.Repr(), c.name, rev)
	}
	return src, r.WithRevision(rev), nil
}

// Load implements [recipe.Evaluator].
func (c *Catalog) Load(ctx context.Context, r ref.Reference) (recipe.Recipe, ref.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, ref.Reference{}, err
	}
	src, got, err := c.Read(r)
	if err != nil {
		return nil, ref.Reference{}, err
	}

	c.mu.Lock()
	rec, ok := c.parsed[got.Repr()]
	c.mu.Unlock()
	if !ok {
		if rec, err = Parse(src, c.Path(r)); err != nil {
			return nil, ref.Reference{}, err
		}
		if rec.Name != "" && (rec.Name != r.Name || rec.Version != r.Version.String()) {
			return nil, ref.Reference{}, errors.New(errors.ErrCodeRecipe,
				"%s declares %s/%s", c.Path(r), rec.Name, rec.Version)
		}
		rec = rec.Bind(got.WithoutRevision())
		c.mu.Lock()
		c.parsed[got.Repr()] = rec
		c.mu.Unlock()
	}
	return rec, got, nil
}

// Versions lists the versions of name present in the catalog, oldest first.
func (c *Catalog) Versions(ctx context.Context, name string) ([]ref.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(c.root, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list %s in %s", name, c.name)
	}
	var out []ref.Reference
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := ref.Parse(name + "/" + e.Name())
		if err != nil {
			continue
		}
		if _, got, err := c.Read(r); err == nil {
			out = append(out, got)
		}
	}
	slices.SortFunc(out, ref.Reference.Compare)
	return out, nil
}

// Publish stores the catalog recipe for r in st and returns the stored
// reference.
func (c *Catalog) Publish(ctx context.Context, st store.Store, r ref.Reference) (ref.Reference, error) {
	src, got, err := c.Read(r)
	if err != nil {
		return ref.Reference{}, err
	}
	rev, err := st.Put(ctx, got.WithoutRevision(), src)
	if err != nil {
		return ref.Reference{}, err
	}
	return got.WithRevision(rev), nil
}
