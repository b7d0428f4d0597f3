package pkgid

import (
	"fmt"
	"testing"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
)

func dep(s, pkgID string, mode Mode) Dependency {
	return Dependency{
		Pref:    ref.NewPackage(ref.MustParse(s), pkgID),
		Context: requirement.Host,
		Kind:    requirement.Require,
		Mode:    mode,
	}
}

var linux = map[string]string{"os": "Linux", "arch": "x86_64", "compiler": "gcc", "compiler.version": "13"}

func TestEmptyInfoHasSentinelID(t *testing.T) {
	info, err := Compute(nil, nil, nil, DefaultModes{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.ID(); got != EmptyID {
		t.Errorf("ID() = %s, want %s", got, EmptyID)
	}

	// Unrelated dependencies do not count.
	info, _ = Compute(nil, nil, []Dependency{dep("zlib/1.0", "abc", UnrelatedMode)}, DefaultModes{}, nil)
	if info.ID() != EmptyID {
		t.Error("unrelated dependency should not change the empty ID")
	}
}

func TestIDIsDeterministic(t *testing.T) {
	deps := []Dependency{dep("zlib/1.2.13", "abc", ""), dep("openssl/3.1.0", "def", "")}
	a, _ := Compute(linux, map[string]string{"shared": "False", "fPIC": "True"}, deps, DefaultModes{}, nil)
	b, _ := Compute(linux, map[string]string{"fPIC": "True", "shared": "False"}, []Dependency{deps[1], deps[0]}, DefaultModes{}, nil)
	if a.ID() != b.ID() {
		t.Errorf("IDs differ for identical inputs:\n%s\nvs\n%s", a.Dumps(), b.Dumps())
	}
	if len(a.ID()) != 40 {
		t.Errorf("ID length = %d", len(a.ID()))
	}
}

func TestFullModeTracksDependencyID(t *testing.T) {
	idFor := func(mode Mode, depID string) string {
		info, _ := Compute(linux, nil, []Dependency{dep("zlib/1.0#r1", depID, mode)}, DefaultModes{}, nil)
		return info.ID()
	}
	if idFor(FullMode, "aaa") == idFor(FullMode, "bbb") {
		t.Error("full_mode: changing the dependency ID must change the consumer ID")
	}
	if idFor(UnrelatedMode, "aaa") != idFor(UnrelatedMode, "bbb") {
		t.Error("unrelated_mode: changing the dependency ID must not change the consumer ID")
	}
	if idFor(SemverMode, "aaa") != idFor(SemverMode, "bbb") {
		t.Error("semver_mode ignores dependency package IDs")
	}
}

// A recipe declaring unrelated_mode for a dependency gets the same ID
// whichever version of that dependency is used.
func TestUnrelatedModeIgnoresVersion(t *testing.T) {
	v1, _ := Compute(linux, nil, []Dependency{dep("dep/1.0", "x", UnrelatedMode)}, DefaultModes{}, nil)
	v2, _ := Compute(linux, nil, []Dependency{dep("dep/2.0", "y", UnrelatedMode)}, DefaultModes{}, nil)
	if v1.ID() != v2.ID() {
		t.Errorf("IDs differ: %s vs %s", v1.ID(), v2.ID())
	}

	m1, _ := Compute(linux, nil, []Dependency{dep("dep/1.0", "x", "")}, DefaultModes{}, nil)
	m2, _ := Compute(linux, nil, []Dependency{dep("dep/2.0", "y", "")}, DefaultModes{}, nil)
	if m1.ID() == m2.ID() {
		t.Error("default semver_mode should distinguish major versions")
	}
}

func TestRequirementInfoModes(t *testing.T) {
	pref := ref.PackageReference{Ref: ref.MustParse("zlib/1.2.13@acme/stable#rrev"), PackageID: "pid", Revision: "prev"}
	tests := []struct {
		mode Mode
		want string
	}{
		{SemverMode, "zlib/1.Y.Z@acme/stable"},
		{MajorMode, "zlib/1.Y.Z@acme/stable"},
		{MinorMode, "zlib/1.2.Z@acme/stable"},
		{PatchMode, "zlib/1.2.13@acme/stable"},
		{FullVersionMode, "zlib/1.2.13@acme/stable"},
		{RecipeRevisionMode, "zlib/1.2.13@acme/stable#rrev"},
		{FullMode, "zlib/1.2.13@acme/stable#rrev:pid"},
		{PackageRevisionMode, "zlib/1.2.13@acme/stable#rrev:pid#prev"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ri, ok := NewRequirementInfo(pref, tt.mode)
			if !ok || ri.String() != tt.want {
				t.Errorf("NewRequirementInfo(%s) = %q, %v; want %q", tt.mode, ri.String(), ok, tt.want)
			}
		})
	}

	zero := ref.PackageReference{Ref: ref.MustParse("zlib/0.3.1"), PackageID: "pid"}
	if ri, _ := NewRequirementInfo(zero, SemverMode); ri.Version != "0.3.1" {
		t.Errorf("semver_mode on 0.x should keep the full version, got %q", ri.Version)
	}
}

func TestDefaultModes(t *testing.T) {
	tool := Dependency{Pref: ref.NewPackage(ref.MustParse("cmake/3.28"), "x"), Context: requirement.Build, Kind: requirement.ToolRequire}
	test := Dependency{Pref: ref.NewPackage(ref.MustParse("gtest/1.14"), "x"), Context: requirement.Host, Kind: requirement.TestRequire}

	info, _ := Compute(nil, nil, []Dependency{tool, test}, DefaultModes{}, nil)
	if !info.IsEmpty() {
		t.Errorf("tool and test requirements should be unrelated by default:\n%s", info.Dumps())
	}

	info, _ = Compute(nil, nil, []Dependency{tool}, DefaultModes{Build: MinorMode}, nil)
	if got := info.BuildRequires["cmake"].String(); got != "cmake/3.28.Z" {
		t.Errorf("build requires = %q", got)
	}
}

func TestHook(t *testing.T) {
	headerOnly := func(i *Info) error { i.Clear(); return nil }
	info, err := Compute(linux, map[string]string{"shared": "True"}, nil, DefaultModes{}, headerOnly)
	if err != nil || info.ID() != EmptyID {
		t.Errorf("header-only hook: id=%s err=%v", info.ID(), err)
	}

	dropOption := func(i *Info) error { delete(i.Options, "verbose"); return nil }
	a, _ := Compute(linux, map[string]string{"verbose": "True"}, nil, DefaultModes{}, dropOption)
	b, _ := Compute(linux, map[string]string{"verbose": "False"}, nil, DefaultModes{}, dropOption)
	if a.ID() != b.ID() {
		t.Error("dropped option should not affect the ID")
	}

	failing := func(*Info) error { return fmt.Errorf("boom") }
	if _, err := Compute(linux, nil, nil, DefaultModes{}, failing); !errors.Is(err, errors.ErrCodeRecipe) {
		t.Errorf("hook error = %v", err)
	}
}

func TestCompatibles(t *testing.T) {
	info, _ := Compute(linux, nil, nil, DefaultModes{}, nil)
	rules := []Compatible{
		{Settings: map[string]string{"compiler.version": "12"}},
		{Settings: map[string]string{"compiler.version": "13"}}, // same as original
		{Settings: map[string]string{"compiler.version": "11"}},
		{Settings: map[string]string{"compiler.version": "12"}}, // duplicate
	}
	alts := Compatibles(info, rules)
	if len(alts) != 2 {
		t.Fatalf("len(alts) = %d, want 2", len(alts))
	}
	if alts[0].Settings["compiler.version"] != "12" || alts[1].Settings["compiler.version"] != "11" {
		t.Errorf("order not preserved: %v, %v", alts[0].Settings, alts[1].Settings)
	}
	if info.Settings["compiler.version"] != "13" {
		t.Error("Compatibles mutated the original")
	}

	removed := info.Apply(Compatible{Settings: map[string]string{"compiler.version": ""}})
	if _, ok := removed.Settings["compiler.version"]; ok {
		t.Error("empty value should remove the key")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("minor_mode"); err != nil || m != MinorMode {
		t.Errorf("ParseMode = %v, %v", m, err)
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected error")
	}
}
