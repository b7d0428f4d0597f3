package hclrecipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/store"
	"github.com/matzehuels/stackforge/pkg/values"
)

const appRecipe = `
name    = "app"
version = "1.0"

options {
  shared = ["True", "False"]
  ssl    = ["True", "False"]
  fPIC   = ["True", "False"]
  level  = "ANY"
}

default_options {
  shared = "False"
  ssl    = "True"
  fPIC   = "True"
}

configure {
  condition      = settings.os == "Windows"
  remove_options = ["fPIC"]
}

configure {
  dependency_options = { "zlib:shared" = options.shared }
}

requires "openssl/[>=3.0 <4]" {
  condition = options.ssl == "True"
}

requires "zlib/1.3" {
  visible = false
  options = { minizip = "True" }
}

tool_requires "cmake/3.27" {}

test_requires "gtest/1.14" {}

package_id {
  remove_settings = ["compiler"]
}

requirement_modes {
  zlib = "full_mode"
}

compatibility {
  condition = lookup(settings, "compiler.cppstd", "") == "17"
  settings  = { "compiler.cppstd" = "14" }
}
`

func mustParse(t *testing.T, src string) *Recipe {
	t.Helper()
	rec, err := Parse([]byte(src), "recipe.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return rec.Bind(ref.MustParse("app/1.0"))
}

func TestParseDeclarations(t *testing.T) {
	rec := mustParse(t, appRecipe)

	r, err := rec.Reference()
	if err != nil || r.String() != "app/1.0" {
		t.Errorf("Reference = %s, %v", r, err)
	}
	defs := rec.Options()
	if got := defs.Allowed["level"]; len(got) != 1 || got[0] != values.AnyValue {
		t.Errorf("level allowed = %v", got)
	}
	if defs.Defaults["ssl"] != "True" {
		t.Errorf("ssl default = %q", defs.Defaults["ssl"])
	}
	if rec.Modes()["zlib"] != pkgid.FullMode {
		t.Errorf("zlib mode = %v", rec.Modes()["zlib"])
	}
}

func TestConfigure(t *testing.T) {
	rec := mustParse(t, appRecipe)
	tests := []struct {
		name     string
		os       string
		wantFPIC bool
	}{
		{"linux keeps fPIC", "Linux", true},
		{"windows removes fPIC", "Windows", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := rec.Options().DefaultValues()
			c := recipe.NewConfigureContext(ref.MustParse("app/1.0"), requirement.Host, opts,
				values.FromMap(map[string]string{"os": tt.os}))
			if err := rec.Configure(c); err != nil {
				t.Fatalf("Configure: %v", err)
			}
			if opts.Has("fPIC") != tt.wantFPIC {
				t.Errorf("fPIC present = %v, want %v", opts.Has("fPIC"), tt.wantFPIC)
			}
			deps := c.DependencyOptions()
			if len(deps) != 1 || deps[0].Pattern != "zlib" || deps[0].Key != "shared" || deps[0].Value != "False" {
				t.Errorf("dependency options = %+v", deps)
			}
		})
	}
}

func TestRequirements(t *testing.T) {
	rec := mustParse(t, appRecipe)

	reqs, err := rec.Requirements(&recipe.RequirementsContext{
		Ref:      ref.MustParse("app/1.0"),
		Options:  values.FromMap(map[string]string{"ssl": "True", "shared": "False"}),
		Settings: values.New(),
	})
	if err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name()
	}
	want := []string{"openssl", "zlib", "cmake", "gtest"}
	if len(names) != len(want) {
		t.Fatalf("requirements = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("requirements[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	if !reqs[0].IsRange() {
		t.Error("openssl should be a range requirement")
	}
	if reqs[1].Visible || len(reqs[1].Options) != 1 || reqs[1].Options[0].Key != "minizip" {
		t.Errorf("zlib requirement = %+v", reqs[1])
	}
	if reqs[2].Kind != requirement.ToolRequire || reqs[2].Context != requirement.Build {
		t.Errorf("cmake requirement = %+v", reqs[2])
	}

	reqs, err = rec.Requirements(&recipe.RequirementsContext{
		Options:  values.FromMap(map[string]string{"ssl": "False", "shared": "False"}),
		Settings: values.New(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 3 || reqs[0].Name() != "zlib" {
		t.Errorf("with ssl=False got %v", reqs)
	}
}

func TestRequirementsUndefinedOption(t *testing.T) {
	rec := mustParse(t, appRecipe)
	_, err := rec.Requirements(&recipe.RequirementsContext{Options: values.New(), Settings: values.New()})
	if !errors.Is(err, errors.ErrCodeRecipe) {
		t.Errorf("got %v, want RECIPE_ERROR", err)
	}
}

func TestPackageIDAndCompatibility(t *testing.T) {
	rec := mustParse(t, appRecipe)
	info := pkgid.NewInfo()
	info.Settings = map[string]string{"os": "Linux", "compiler": "gcc", "compiler.version": "13", "compiler.cppstd": "17"}
	info.Options = map[string]string{"shared": "False"}

	rules := rec.Compatibility(info)
	if len(rules) != 1 || rules[0].Settings["compiler.cppstd"] != "14" {
		t.Errorf("compatibility = %+v", rules)
	}

	if err := rec.PackageID(info); err != nil {
		t.Fatal(err)
	}
	if len(info.Settings) != 1 || info.Settings["os"] != "Linux" {
		t.Errorf("settings after package_id = %v", info.Settings)
	}
}

func TestHeaderOnly(t *testing.T) {
	rec := mustParse(t, `
package_id {
  header_only = true
}
`)
	info := pkgid.NewInfo()
	info.Settings = map[string]string{"os": "Linux"}
	if err := rec.PackageID(info); err != nil {
		t.Fatal(err)
	}
	if info.ID() != pkgid.EmptyID {
		t.Errorf("header-only id = %s, want %s", info.ID(), pkgid.EmptyID)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `options {`},
		{"unknown block", `frobnicate {}`},
		{"bad requirement", `requires "not a ref" {}`},
		{"bad mode", "requirement_modes {\n  zlib = \"sideways_mode\"\n}"},
		{"undeclared default", "default_options {\n  shared = \"True\"\n}"},
		{"duplicate options", "options {}\noptions {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src), "recipe.hcl"); !errors.Is(err, errors.ErrCodeRecipe) {
				t.Errorf("got %v, want RECIPE_ERROR", err)
			}
		})
	}
}

func writeRecipe(t *testing.T, root, name, ver, src string) {
	t.Helper()
	dir := filepath.Join(root, name, ver)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeRecipe(t, root, "zlib", "1.2", "")
	writeRecipe(t, root, "zlib", "1.3", "options {\n  shared = [\"True\", \"False\"]\n}\n")
	writeRecipe(t, root, "zlib", "1.10", "")
	c := NewCatalog(root)

	refs, err := c.Versions(ctx, "zlib")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 3 || refs[2].Version.String() != "1.10" {
		t.Errorf("Versions = %v", refs)
	}

	rec, got, err := c.Load(ctx, ref.MustParse("zlib/1.3"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rec.Options().Declared("shared") {
		t.Error("loaded recipe lost its options")
	}
	if got.Revision == "" {
		t.Error("Load did not assign a revision")
	}

	if _, _, err := c.Load(ctx, ref.MustParse("zlib/9.9")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing version: got %v", err)
	}
	if _, _, err := c.Load(ctx, got.WithRevision("stale")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("stale revision: got %v", err)
	}
}

func TestCatalogNameMismatch(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "zlib", "1.3", "name = \"zlib\"\nversion = \"1.2\"\n")
	if _, _, err := NewCatalog(root).Load(context.Background(), ref.MustParse("zlib/1.3")); !errors.Is(err, errors.ErrCodeRecipe) {
		t.Errorf("got %v, want RECIPE_ERROR", err)
	}
}

func TestPublishAndStoreEvaluator(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeRecipe(t, root, "zlib", "1.3", "options {\n  shared = [\"True\", \"False\"]\n}\n")
	st := store.NewMemory()

	pub, err := NewCatalog(root).Publish(ctx, st, ref.MustParse("zlib/1.3"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ev := recipe.Chain{NewStoreEvaluator(st), NewCatalog(t.TempDir())}
	rec, got, err := ev.Load(ctx, ref.MustParse("zlib/1.3"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Revision != pub.Revision || !rec.Options().Declared("shared") {
		t.Errorf("loaded %s, published %s", got.Repr(), pub.Repr())
	}
	if _, _, err := ev.Load(ctx, ref.MustParse("bzip2/1.0")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing recipe: got %v", err)
	}
}
