package graph

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/profile"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// catalog builds a catalog from "ref" -> requirement strings. A trailing
// "!" on a requirement forces it; a leading "~" makes it private.
func catalog(t *testing.T, recipes map[string][]string) *recipe.Catalog {
	t.Helper()
	c := recipe.NewCatalog("test")
	for r, reqs := range recipes {
		f := &recipe.Func{}
		for _, s := range reqs {
			var opts []requirement.Option
			if strings.HasSuffix(s, "!") {
				s = strings.TrimSuffix(s, "!")
				opts = append(opts, requirement.Forced())
			}
			if strings.HasPrefix(s, "~") {
				s = strings.TrimPrefix(s, "~")
				opts = append(opts, requirement.Private())
			}
			f.Requires = append(f.Requires, requirement.MustParse(s, opts...))
		}
		c.AddFunc(r, f)
	}
	return c
}

func builder(ev recipe.Evaluator) *Builder {
	return &Builder{Evaluator: ev, Logger: log.New(io.Discard)}
}

func consumer(reqs ...string) Root {
	rs := make([]requirement.Requirement, len(reqs))
	for i, s := range reqs {
		rs[i] = requirement.MustParse(s)
	}
	return Consumer(rs...)
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func equal(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func TestBuildAcyclic(t *testing.T) {
	c := catalog(t, map[string][]string{
		"app/1.0":  {"libb/1.0", "libc/1.0"},
		"libb/1.0": {"liba/1.0"},
		"libc/1.0": {"liba/1.0"},
		"liba/1.0": nil,
	})
	g, err := builder(c).Build(context.Background(), FromRef(ref.MustParse("app/1.0")), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if want := []string{"app/1.0", "libb/1.0", "libc/1.0", "liba/1.0"}; !equal(ids(g.Nodes()), want) {
		t.Errorf("nodes = %v, want %v", ids(g.Nodes()), want)
	}
	liba := g.ByName("liba")
	if len(liba) != 1 {
		t.Fatalf("liba nodes = %d, want 1", len(liba))
	}
	if got := ids(g.Dependants(liba[0])); !equal(got, []string{"libb/1.0", "libc/1.0"}) {
		t.Errorf("liba dependants = %v", got)
	}
	if got := ids(g.TransitiveDeps(g.Root())); len(got) != 3 {
		t.Errorf("transitive deps = %v", got)
	}
	if got := ids(g.BottomUp()); got[0] != "liba/1.0" || got[len(got)-1] != "app/1.0" {
		t.Errorf("bottom-up order = %v", got)
	}
	for _, n := range g.Nodes() {
		if n.State != Finalized {
			t.Errorf("%s state = %s", n.ID, n.State)
		}
		if n.Ref.Revision == "" {
			t.Errorf("%s has no revision", n.ID)
		}
	}
	if n, ok := g.Node("libb/1.0"); !ok || len(g.EdgesFrom(n)) != 1 || g.EdgesFrom(n)[0].To != liba[0] {
		t.Error("libb should have one edge to liba")
	}
}

func TestBuildVersionConflict(t *testing.T) {
	recipes := map[string][]string{
		"libb/1.0": {"liba/1.0"},
		"libc/1.0": {"liba/2.0"},
		"liba/1.0": nil,
		"liba/2.0": nil,
	}
	ctx := context.Background()

	_, err := builder(catalog(t, recipes)).Build(ctx, consumer("libb/1.0", "libc/1.0"), nil)
	if !errors.Is(err, errors.ErrCodeVersionConflict) {
		t.Fatalf("got %v, want VERSION_CONFLICT", err)
	}
	msg := err.Error()
	for _, want := range []string{"libb/1.0", "libc/1.0", "liba/1.0", "liba/2.0", "override"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}

	// An override at the root resolves the conflict.
	root := consumer("libb/1.0", "libc/1.0")
	root.Requires = append(root.Requires, requirement.MustParse("liba/2.0", requirement.AsOverride()))
	g, err := builder(catalog(t, recipes)).Build(ctx, root, nil)
	if err != nil {
		t.Fatalf("Build with override: %v", err)
	}
	liba := g.ByName("liba")
	if len(liba) != 1 || liba[0].Ref.String() != "liba/2.0" {
		t.Fatalf("liba nodes = %v", ids(liba))
	}
	if got := ids(g.Dependants(liba[0])); !equal(got, []string{"libb/1.0", "libc/1.0"}) {
		t.Errorf("liba/2.0 dependants = %v", got)
	}
	if len(g.Dependencies(g.Root())) != 2 {
		t.Errorf("an override-only requirement must not add an edge: %v", ids(g.Dependencies(g.Root())))
	}
	libb, _ := g.Node("libb/1.0")
	if ov := libb.Requirements.Overrides(); len(ov) != 1 || ov[0].Original.String() != "liba/1.0" || ov[0].By != ConsumerID {
		t.Errorf("libb override log = %+v", ov)
	}
	if len(g.Warnings) == 0 || g.Warnings[0].Kind != WarnOverride {
		t.Errorf("warnings = %+v", g.Warnings)
	}
}

func TestBuildScenarioA(t *testing.T) {
	recipes := map[string][]string{
		"libb/1.0": {"liba/[<=2.0]"},
		"libc/1.0": {"liba/1.0"},
		"liba/1.0": nil,
		"liba/2.0": nil,
	}
	ctx := context.Background()

	t.Run("pin first", func(t *testing.T) {
		g, err := builder(catalog(t, recipes)).Build(ctx, consumer("libc/1.0", "libb/1.0"), nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		liba := g.ByName("liba")
		if len(liba) != 1 || liba[0].Ref.String() != "liba/1.0" {
			t.Fatalf("liba nodes = %v", ids(liba))
		}
		if len(g.Dependants(liba[0])) != 2 {
			t.Errorf("libb and libc should share liba/1.0")
		}
	})

	t.Run("range first", func(t *testing.T) {
		_, err := builder(catalog(t, recipes)).Build(ctx, consumer("libb/1.0", "libc/1.0"), nil)
		if !errors.Is(err, errors.ErrCodeVersionConflict) {
			t.Fatalf("got %v, want VERSION_CONFLICT", err)
		}
		if !strings.Contains(err.Error(), "libb/1.0") || !strings.Contains(err.Error(), "libc/1.0") {
			t.Errorf("error %q should name libb and libc", err)
		}
	})
}

func TestBuildRanges(t *testing.T) {
	ctx := context.Background()

	t.Run("shared node satisfying both", func(t *testing.T) {
		c := catalog(t, map[string][]string{
			"libb/1.0": {"liba/[>=1 <3]"},
			"libc/1.0": {"liba/[>=1.5]"},
			"liba/1.0": nil,
			"liba/2.0": nil,
		})
		g, err := builder(c).Build(ctx, consumer("libb/1.0", "libc/1.0"), nil)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if liba := g.ByName("liba"); len(liba) != 1 || liba[0].Ref.String() != "liba/2.0" {
			t.Errorf("liba nodes = %v", ids(liba))
		}
	})

	t.Run("disjoint", func(t *testing.T) {
		c := catalog(t, map[string][]string{
			"libb/1.0": {"liba/[<2]"},
			"libc/1.0": {"liba/[>=2]"},
			"liba/1.0": nil,
			"liba/2.0": nil,
		})
		_, err := builder(c).Build(ctx, consumer("libb/1.0", "libc/1.0"), nil)
		if !errors.Is(err, errors.ErrCodeRangeConflict) {
			t.Fatalf("got %v, want RANGE_CONFLICT", err)
		}
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		c := catalog(t, map[string][]string{"liba/1.0": nil})
		_, err := builder(c).Build(ctx, consumer("liba/[>=2]"), nil)
		if !errors.Is(err, errors.ErrCodeNotFound) {
			t.Fatalf("got %v, want NOT_FOUND", err)
		}
	})
}

func TestBuildLoops(t *testing.T) {
	tests := []struct {
		name    string
		recipes map[string][]string
		cycle   string
	}{
		{
			name:    "self",
			recipes: map[string][]string{"liba/1.0": {"liba/1.0"}},
			cycle:   "liba/1.0 -> liba/1.0",
		},
		{
			name:    "transitive",
			recipes: map[string][]string{"liba/1.0": {"libb/1.0"}, "libb/1.0": {"libc/1.0"}, "libc/1.0": {"liba/1.0"}},
			cycle:   "liba/1.0 -> libb/1.0 -> libc/1.0 -> liba/1.0",
		},
		{
			name:    "different version",
			recipes: map[string][]string{"liba/1.0": {"libb/1.0"}, "libb/1.0": {"liba/2.0"}, "liba/2.0": nil},
			cycle:   "liba/1.0 -> libb/1.0 -> liba/2.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := builder(catalog(t, tt.recipes)).Build(context.Background(), consumer("liba/1.0"), nil)
			if !errors.Is(err, errors.ErrCodeGraphLoop) {
				t.Fatalf("got %v, want GRAPH_LOOP", err)
			}
			if !strings.Contains(err.Error(), tt.cycle) {
				t.Errorf("error %q does not contain cycle %q", err, tt.cycle)
			}
		})
	}
}

func TestBuildToolInOtherContextIsNotALoop(t *testing.T) {
	c := recipe.NewCatalog("test")
	c.AddFunc("protobuf/3.21", &recipe.Func{
		RequirementsFunc: func(rc *recipe.RequirementsContext) ([]requirement.Requirement, error) {
			if rc.Context == requirement.Build {
				return nil, nil
			}
			return []requirement.Requirement{requirement.MustParse("protobuf/3.21", requirement.AsTool())}, nil
		},
	})
	g, err := builder(c).Build(context.Background(), consumer("protobuf/3.21"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := ids(g.ByName("protobuf")); !equal(got, []string{"protobuf/3.21", "protobuf/3.21 (build)"}) {
		t.Errorf("protobuf nodes = %v", got)
	}
}

func TestBuildPrivateIsolation(t *testing.T) {
	c := catalog(t, map[string][]string{
		"app/1.0":  {"liba/1.0", "~libb/1.0"},
		"libb/1.0": {"liba/2.0"},
		"liba/1.0": nil,
		"liba/2.0": nil,
	})
	g, err := builder(c).Build(context.Background(), FromRef(ref.MustParse("app/1.0")), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	liba := g.ByName("liba")
	if len(liba) != 2 {
		t.Fatalf("liba nodes = %v, want one per scope", ids(liba))
	}
	for _, n := range liba {
		switch n.Ref.String() {
		case "liba/1.0":
			if !n.Visible {
				t.Error("liba/1.0 should be visible")
			}
		case "liba/2.0":
			if n.Visible {
				t.Error("liba/2.0 is only reachable through a private edge")
			}
		}
	}
	libb, _ := g.Node("libb/1.0")
	if libb.Visible {
		t.Error("libb should not be visible")
	}
}

func TestBuildForcedRedirect(t *testing.T) {
	c := catalog(t, map[string][]string{
		"libb/1.0": {"liba/1.0"},
		"libx/1.0": {"liby/1.0"},
		"liby/1.0": {"liba/2.0!"},
		"liba/1.0": {"zlib/1.0"},
		"liba/2.0": nil,
		"zlib/1.0": nil,
	})
	g, err := builder(c).Build(context.Background(), consumer("libb/1.0", "libx/1.0"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	liba := g.ByName("liba")
	if len(liba) != 1 || liba[0].Ref.String() != "liba/2.0" {
		t.Fatalf("liba nodes = %v", ids(liba))
	}
	got := ids(g.Dependants(liba[0]))
	slices.Sort(got)
	if !equal(got, []string{"libb/1.0", "liby/1.0"}) {
		t.Errorf("liba/2.0 dependants = %v", got)
	}
	if len(g.ByName("zlib")) != 0 {
		t.Error("zlib was only required by the replaced liba/1.0 and should be pruned")
	}
	libb, _ := g.Node("libb/1.0")
	if r, _ := libb.Requirements.Get("liba", requirement.Host); r.Ref.String() != "liba/2.0" {
		t.Errorf("libb requirement = %s", r.Ref)
	}
	for _, e := range g.EdgesFrom(libb) {
		if e.Requirement.Ref.String() != "liba/2.0" {
			t.Errorf("edge requirement = %s", e.Requirement.Ref)
		}
	}
}

func TestBuildForcedAdoption(t *testing.T) {
	c := catalog(t, map[string][]string{
		"libb/1.0": {"liba/2.0!"},
		"libc/1.0": {"liba/1.0"},
		"liba/1.0": nil,
		"liba/2.0": nil,
	})
	g, err := builder(c).Build(context.Background(), consumer("libb/1.0", "libc/1.0"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if liba := g.ByName("liba"); len(liba) != 1 || liba[0].Ref.String() != "liba/2.0" {
		t.Fatalf("liba nodes = %v", ids(liba))
	}
	libc, _ := g.Node("libc/1.0")
	if ov := libc.Requirements.Overrides(); len(ov) != 1 || ov[0].Replacement.String() != "liba/2.0" {
		t.Errorf("libc override log = %+v", ov)
	}
}

func optionRecipe(reqs ...string) *recipe.Func {
	f := &recipe.Func{OptionDefs: values.OptionDefs{
		Allowed:  map[string][]string{"shared": {"True", "False"}},
		Defaults: map[string]string{"shared": "False"},
	}}
	for _, s := range reqs {
		f.Requires = append(f.Requires, requirement.MustParse(s))
	}
	return f
}

func TestBuildScenarioB(t *testing.T) {
	c := recipe.NewCatalog("test")
	c.AddFunc("pkgA/1.0", optionRecipe())
	c.AddFunc("pkgB/1.0", optionRecipe("pkgC/1.0"))
	c.AddFunc("pkgC/1.0", optionRecipe())

	prof := profile.New("test")
	if err := prof.Apply(nil, []string{"*:shared=True", "pkgA:shared=False"}); err != nil {
		t.Fatal(err)
	}
	g, err := builder(c).Build(context.Background(), consumer("pkgA/1.0", "pkgB/1.0"), prof)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[string]string{"pkgA": "False", "pkgB": "True", "pkgC": "True"}
	for name, v := range want {
		n := g.ByName(name)[0]
		if got := n.Options.GetSafe("shared", ""); got != v {
			t.Errorf("%s shared = %s, want %s", name, got, v)
		}
	}
}

func TestBuildDownstreamOptions(t *testing.T) {
	ctx := context.Background()
	newCatalog := func() *recipe.Catalog {
		c := recipe.NewCatalog("test")
		app := optionRecipe("zlib/1.3")
		app.ConfigureFunc = func(cc *recipe.ConfigureContext) error {
			cc.SetDependencyOption("zlib", "shared", "True")
			return nil
		}
		c.AddFunc("app/1.0", app)
		c.AddFunc("zlib/1.3", optionRecipe())
		return c
	}

	g, err := builder(newCatalog()).Build(ctx, FromRef(ref.MustParse("app/1.0")), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zlib := g.ByName("zlib")[0]
	if got := zlib.Options.GetSafe("shared", ""); got != "True" {
		t.Errorf("zlib shared = %s, want the value imposed by app", got)
	}
	if w, _ := zlib.Options.Winner("shared"); w.Source != "app/1.0" {
		t.Errorf("zlib shared provenance = %+v", w)
	}

	prof := profile.New("test")
	if err := prof.Apply(nil, []string{"zlib:shared=False"}); err != nil {
		t.Fatal(err)
	}
	g, err = builder(newCatalog()).Build(ctx, FromRef(ref.MustParse("app/1.0")), prof)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := g.ByName("zlib")[0].Options.GetSafe("shared", ""); got != "False" {
		t.Errorf("zlib shared = %s, want the command line value", got)
	}
}

func TestBuildImportantSurvivesConfigure(t *testing.T) {
	c := recipe.NewCatalog("test")
	zlib := optionRecipe()
	zlib.ConfigureFunc = func(cc *recipe.ConfigureContext) error {
		cc.Options.Set("shared", "True")
		return nil
	}
	c.AddFunc("zlib/1.3", zlib)

	tests := []struct {
		name   string
		option string
		want   string
	}{
		{"plain value yields to configure", "zlib:shared=False", "True"},
		{"important value is pinned", "zlib:shared!=False", "False"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof := profile.New("test")
			if err := prof.Apply(nil, []string{tt.option}); err != nil {
				t.Fatal(err)
			}
			g, err := builder(c).Build(context.Background(), consumer("zlib/1.3"), prof)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := g.ByName("zlib")[0].Options.GetSafe("shared", ""); got != tt.want {
				t.Errorf("shared = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildDivergentConfiguration(t *testing.T) {
	c := recipe.NewCatalog("test")
	c.AddFunc("zlib/1.3", optionRecipe())
	c.AddFunc("libb/1.0", &recipe.Func{Requires: []requirement.Requirement{
		requirement.MustParse("zlib/1.3", requirement.WithOptions(values.Assignment{Key: "shared", Value: "True", Origin: values.OriginRecipe, Source: "libb/1.0"})),
	}})
	c.AddFunc("libc/1.0", &recipe.Func{Requires: []requirement.Requirement{requirement.MustParse("zlib/1.3")}})

	g, err := builder(c).Build(context.Background(), consumer("libb/1.0", "libc/1.0"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zlib := g.ByName("zlib")
	if len(zlib) != 2 {
		t.Fatalf("zlib nodes = %v, want one per configuration", ids(zlib))
	}
	if zlib[0].Options.GetSafe("shared", "") == zlib[1].Options.GetSafe("shared", "") {
		t.Error("the two zlib nodes should differ in options")
	}
	found := false
	for _, w := range g.Warnings {
		found = found || w.Kind == WarnOptionsConflict
	}
	if !found {
		t.Errorf("warnings = %+v, want an options conflict", g.Warnings)
	}
}

func TestBuildSettingsAndTools(t *testing.T) {
	c := catalog(t, map[string][]string{
		"app/1.0":    {"zlib/1.3"},
		"zlib/1.3":   nil,
		"cmake/3.27": nil,
	})
	prof, err := profile.Parse([]byte(`
[settings]
os = "Windows"
arch = "x86_64"

[build_settings]
os = "Linux"
arch = "x86_64"

[tool_requires]
"*" = ["cmake/3.27"]
`), "cross")
	if err != nil {
		t.Fatal(err)
	}

	g, err := builder(c).Build(context.Background(), FromRef(ref.MustParse("app/1.0")), prof)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cmake := g.ByName("cmake")
	if len(cmake) != 1 {
		t.Fatalf("cmake nodes = %v, want a single shared build node", ids(cmake))
	}
	if cmake[0].Context != requirement.Build || cmake[0].Visible {
		t.Errorf("cmake node = %s visible=%v", cmake[0].Context, cmake[0].Visible)
	}
	if got := cmake[0].Settings.GetSafe("os", ""); got != "Linux" {
		t.Errorf("cmake os = %s, want the build profile", got)
	}
	if got := g.ByName("zlib")[0].Settings.GetSafe("os", ""); got != "Windows" {
		t.Errorf("zlib os = %s, want the host profile", got)
	}
	if got := len(g.Dependants(cmake[0])); got != 2 {
		t.Errorf("cmake dependants = %d, want app and zlib", got)
	}
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()
	failing := recipe.NewCatalog("test")
	failing.AddFunc("liba/1.0", &recipe.Func{Requires: []requirement.Requirement{requirement.MustParse("libb/1.0")}})
	failing.AddFunc("libb/1.0", &recipe.Func{RequirementsFunc: func(rc *recipe.RequirementsContext) ([]requirement.Requirement, error) {
		_, err := rc.Options.Get("missing")
		return nil, err
	}})
	failing.AddFunc("zlib/1.3", optionRecipe())

	tests := []struct {
		name  string
		root  Root
		prof  []string
		code  errors.Code
		refer string
	}{
		{"unknown recipe", consumer("liba/1.0", "nope/1.0"), nil, errors.ErrCodeNotFound, "nope/1.0"},
		{"recipe failure", consumer("liba/1.0"), nil, errors.ErrCodeRecipe, "required by consumer -> liba/1.0"},
		{"undefined value", consumer("liba/1.0"), nil, errors.ErrCodeValueNotDefined, "libb/1.0"},
		{"unknown option", consumer("zlib/1.3"), []string{"zlib:static=True"}, errors.ErrCodeInvalidOption, "static"},
		{"bad option value", consumer("zlib/1.3"), []string{"zlib:shared=Maybe"}, errors.ErrCodeInvalidOption, "Maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof := profile.New("test")
			if err := prof.Apply(nil, tt.prof); err != nil {
				t.Fatal(err)
			}
			g, err := builder(failing).Build(ctx, tt.root, prof)
			if g != nil {
				t.Error("a failed build must not return a graph")
			}
			if !errors.Is(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}
			if !strings.Contains(err.Error(), tt.refer) {
				t.Errorf("error %q does not mention %s", err, tt.refer)
			}
		})
	}
}

func TestBuildInvalidSetting(t *testing.T) {
	prof := profile.New("test")
	if err := prof.Apply([]string{"os=Plan9"}, nil); err != nil {
		t.Fatal(err)
	}
	_, err := builder(catalog(t, map[string][]string{"zlib/1.3": nil})).Build(context.Background(), consumer("zlib/1.3"), prof)
	if !errors.Is(err, errors.ErrCodeInvalidSetting) {
		t.Errorf("got %v, want INVALID_SETTING", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := builder(catalog(t, map[string][]string{"zlib/1.3": nil})).Build(ctx, consumer("zlib/1.3"), nil)
	if err == nil {
		t.Error("expected an error from a cancelled build")
	}
}

func TestExport(t *testing.T) {
	c := catalog(t, map[string][]string{"app/1.0": {"zlib/[>=1.2]"}, "zlib/1.2": nil, "zlib/1.3": nil})
	g, err := builder(c).Build(context.Background(), FromRef(ref.MustParse("app/1.0")), nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalGraph(g)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Root != "app/1.0" || len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Fatalf("document = %+v", doc)
	}
	if e := doc.Edges[0]; e.To != "zlib/1.3" || e.Declared != "zlib/[>=1.2]" || e.Kind != "require" {
		t.Errorf("edge = %+v", e)
	}
	if got := doc.Nodes[0].Requires; len(got) != 1 || !strings.HasPrefix(got[0], "zlib/1.3") {
		t.Errorf("app requires = %v", got)
	}
}

func TestBuildConsumerRecipe(t *testing.T) {
	c := catalog(t, map[string][]string{"zlib/1.3": nil})
	rec := &recipe.Func{Requires: []requirement.Requirement{requirement.MustParse("zlib/1.3")}}
	g, err := builder(c).Build(context.Background(), Root{Recipe: rec}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if root := g.Root(); !root.Virtual || root.ID != ConsumerID {
		t.Errorf("root = %s, virtual=%v", root.ID, root.Virtual)
	}
	if want := []string{ConsumerID, "zlib/1.3"}; !equal(ids(g.Nodes()), want) {
		t.Errorf("nodes = %v, want %v", ids(g.Nodes()), want)
	}
}
