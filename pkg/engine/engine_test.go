package engine

import (
	"context"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackforge/pkg/binaries"
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/lockfile"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/recipe/hclrecipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/store"
)

type fixture struct {
	catalog *recipe.Catalog
	local   *store.KVStore
	remote  *store.KVStore
	eng     *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := recipe.NewCatalog("recipes")
	c.AddFunc("app/1.0", &recipe.Func{Requires: []requirement.Requirement{requirement.MustParse("zlib/[>=1.2 <2]")}})
	c.AddFunc("zlib/1.2", nil)
	c.AddFunc("zlib/1.3", nil)

	f := &fixture{
		catalog: c,
		local:   store.New("local", store.NewMemoryKV()),
		remote:  store.New("central", store.NewMemoryKV()),
	}
	f.eng = New(c, f.local, []store.Store{f.remote}, nil, log.New(io.Discard))
	return f
}

func appRoot() graph.Root { return graph.FromRef(ref.MustParse("app/1.0")) }

func statuses(res *binaries.Result) map[string]binaries.Status {
	out := make(map[string]binaries.Status)
	for _, b := range res.Binaries {
		out[b.Node.ID] = b.Status
	}
	return out
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	if o.Parallel != binaries.DefaultParallel || o.RemoteTimeout <= 0 || o.Modes.Host == "" || o.Modes.Build == "" {
		t.Errorf("WithDefaults = %+v", o)
	}
	if o := (Options{Parallel: 2}).WithDefaults(); o.Parallel != 2 {
		t.Errorf("Parallel overwritten: %d", o.Parallel)
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	g, err := f.eng.Resolve(context.Background(), appRoot(), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if zs := g.ByName("zlib"); len(zs) != 1 || zs[0].Ref.String() != "zlib/1.3" {
		t.Errorf("zlib = %v", zs)
	}
}

func TestInstall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.eng.Install(ctx, appRoot(), Options{})
	if !errors.Is(err, errors.ErrCodeMissingBinary) {
		t.Fatalf("empty stores: got %v, want MISSING_BINARY", err)
	}
	if res == nil || res.Binaries == nil {
		t.Fatal("a failed install must still report statuses")
	}
	if got := statuses(res.Binaries); got["zlib/1.3"] != binaries.StatusMissing {
		t.Errorf("statuses = %v", got)
	}

	policy, _ := binaries.ParsePolicy([]string{"missing"})
	res, err = f.eng.Install(ctx, appRoot(), Options{Policy: policy})
	if err != nil {
		t.Fatalf("Install --build=missing: %v", err)
	}
	if got := statuses(res.Binaries); got["zlib/1.3"] != binaries.StatusBuild || got["app/1.0"] != binaries.StatusBuild {
		t.Errorf("statuses = %v", got)
	}

	// Publish the requested binaries on the remote.
	for _, b := range res.Binaries.Binaries {
		if b.Node.Virtual {
			continue
		}
		if _, err := f.remote.PutPackage(ctx, b.Pref, []byte(b.Node.ID)); err != nil {
			t.Fatal(err)
		}
	}

	lock := lockfile.New()
	res, err = f.eng.Install(ctx, appRoot(), Options{Lock: lock})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := statuses(res.Binaries); got["zlib/1.3"] != binaries.StatusDownload || got["app/1.0"] != binaries.StatusDownload {
		t.Errorf("statuses = %v", got)
	}
	if res.Stats.NodeCount != 2 || res.Stats.EdgeCount != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	zlib, _ := res.Binaries.Binary(res.Graph.ByName("zlib")[0])
	if id, ok := lock.PackageID(zlib.Node.Ref); !ok || id != zlib.Pref.PackageID {
		t.Errorf("lock package id = %q, %v", id, ok)
	}

	res, err = f.eng.Install(ctx, appRoot(), Options{})
	if err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if got := statuses(res.Binaries); got["zlib/1.3"] != binaries.StatusCache {
		t.Errorf("second run statuses = %v", got)
	}
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	l, g, err := f.eng.Lock(ctx, appRoot(), nil, Options{})
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("graph has %d nodes", g.Len())
	}
	var got []string
	for _, r := range l.Requires(requirement.Host) {
		got = append(got, r.String())
	}
	if !slices.Equal(got, []string{"app/1.0", "zlib/1.3"}) {
		t.Errorf("locked = %v", got)
	}

	f.catalog.AddFunc("zlib/1.4", nil)
	g, err = f.eng.Resolve(ctx, appRoot(), Options{Lock: l})
	if err != nil {
		t.Fatal(err)
	}
	if z := g.ByName("zlib")[0]; z.Ref.String() != "zlib/1.3" {
		t.Errorf("locked resolve picked %s", z.Ref)
	}
	g, _ = f.eng.Resolve(ctx, appRoot(), Options{})
	if z := g.ByName("zlib")[0]; z.Ref.String() != "zlib/1.4" {
		t.Errorf("unlocked resolve picked %s", z.Ref)
	}
}

func TestResolveFromLocalStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// zlib/1.9 exists only as a recipe in the local store.
	if _, err := f.local.Put(ctx, ref.MustParse("zlib/1.9"), []byte("name = \"zlib\"\nversion = \"1.9\"\n")); err != nil {
		t.Fatal(err)
	}
	f.eng.Evaluator = recipe.Chain{f.catalog, hclrecipe.NewStoreEvaluator(f.local)}

	g, err := f.eng.Resolve(ctx, appRoot(), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	z := g.ByName("zlib")[0]
	if z.Ref.String() != "zlib/1.9" || z.Ref.Revision == "" {
		t.Errorf("zlib = %s", z.Ref.Repr())
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := ref.MustParse("zlib/1.3")

	if _, err := f.eng.Upload(ctx, r, f.remote, false, 0); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("upload of an absent recipe: %v", err)
	}

	rev, _ := f.local.Put(ctx, r, []byte("recipe"))
	for _, id := range []string{"bbb", "aaa"} {
		if _, err := f.local.PutPackage(ctx, ref.NewPackage(r.WithRevision(rev), id), []byte(id)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := f.eng.Upload(ctx, r, f.remote, false, 2)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Recipe.Revision != rev || !slices.Equal(res.Packages, []string{"aaa", "bbb"}) {
		t.Errorf("result = %+v", res)
	}
	if got, ok, _ := f.remote.Exists(ctx, r); !ok || got != rev {
		t.Errorf("remote recipe revision = %s, %v", got, ok)
	}
	ids, _ := f.remote.ListPackages(ctx, r)
	if !slices.Equal(ids, []string{"aaa", "bbb"}) {
		t.Errorf("remote packages = %v", ids)
	}

	res, err = f.eng.Upload(ctx, r, store.New("other", store.NewMemoryKV()), true, 0)
	if err != nil || len(res.Packages) != 0 {
		t.Errorf("recipe-only upload = %+v, %v", res, err)
	}
}
