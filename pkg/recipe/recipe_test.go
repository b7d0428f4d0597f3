package recipe

import (
	"context"
	"testing"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

func TestCatalogLoad(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog("test")
	added := c.AddFunc("zlib/1.3", nil)
	if added.Revision == "" {
		t.Fatal("Add did not assign a revision")
	}

	rec, got, err := c.Load(ctx, ref.MustParse("zlib/1.3"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec == nil || got.Revision != added.Revision {
		t.Errorf("Load returned %v %s", rec, got.Repr())
	}

	if _, _, err := c.Load(ctx, ref.MustParse("zlib/1.3#other")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("pinned wrong revision: got %v, want NOT_FOUND", err)
	}
	if _, _, err := c.Load(ctx, ref.MustParse("zlib/1.3@acme/stable")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("different user/channel: got %v, want NOT_FOUND", err)
	}
}

func TestCatalogVersions(t *testing.T) {
	c := NewCatalog("test")
	for _, s := range []string{"zlib/1.10", "zlib/1.2", "zlib/1.3", "bzip2/1.0"} {
		c.AddFunc(s, nil)
	}
	refs, err := c.Versions(context.Background(), "zlib")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1.2", "1.3", "1.10"}
	if len(refs) != len(want) {
		t.Fatalf("got %d versions, want %d", len(refs), len(want))
	}
	for i, r := range refs {
		if r.Version.String() != want[i] {
			t.Errorf("versions[%d] = %s, want %s", i, r.Version, want[i])
		}
	}
}

func TestFuncRequirementsOrder(t *testing.T) {
	f := &Func{
		Requires: []requirement.Requirement{requirement.MustParse("zlib/1.3")},
		RequirementsFunc: func(c *RequirementsContext) ([]requirement.Requirement, error) {
			if c.Options.GetSafe("ssl", "False") == "True" {
				return []requirement.Requirement{requirement.MustParse("openssl/3.0")}, nil
			}
			return nil, nil
		},
	}
	opts := values.FromMap(map[string]string{"ssl": "True"})
	reqs, err := f.Requirements(&RequirementsContext{Options: opts, Settings: values.New()})
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 || reqs[0].Name() != "zlib" || reqs[1].Name() != "openssl" {
		t.Errorf("requirements = %v", reqs)
	}
}

func TestFuncDefaults(t *testing.T) {
	var f Func
	if err := f.Configure(NewConfigureContext(ref.MustParse("a/1"), requirement.Host, values.New(), values.New())); err != nil {
		t.Error(err)
	}
	if err := f.PackageID(pkgid.NewInfo()); err != nil {
		t.Error(err)
	}
	if f.Compatibility(pkgid.NewInfo()) != nil {
		t.Error("zero Func should have no compatibility rules")
	}
	if len(f.Modes()) != 0 {
		t.Error("zero Func should have no modes")
	}
}

func TestConfigureContextDependencyOptions(t *testing.T) {
	c := NewConfigureContext(ref.MustParse("app/1.0"), requirement.Host, values.New(), values.New())
	c.SetDependencyOption("zlib", "shared", "True")
	c.SetDependencyOption("*", "fPIC", "True")

	got := c.DependencyOptions()
	if len(got) != 2 {
		t.Fatalf("got %d assignments", len(got))
	}
	if got[0].Pattern != "zlib" || got[0].Origin != values.OriginRecipe || got[0].Source != "app/1.0" {
		t.Errorf("first assignment = %+v", got[0])
	}
	got[0].Value = "mutated"
	if c.DependencyOptions()[0].Value != "True" {
		t.Error("DependencyOptions returned internal storage")
	}
}
