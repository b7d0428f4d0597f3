// Package pkgid computes package IDs: fingerprints that distinguish binaries
// of one recipe built with different settings, options and dependencies.
//
// An [Info] is a transient view of a resolved node. It holds the settings,
// options and dependency summaries that are significant for the binary, with
// each dependency truncated according to its [Mode]. A recipe may rewrite the
// Info through its identity hook before it is hashed. The ID is the SHA-1 of
// a canonical text rendering, so identical inputs always produce identical
// IDs, and an Info with nothing in it hashes to [EmptyID].
//
// When no binary exists for an ID, [Compatibles] expands the recipe's
// compatibility rules into an ordered list of alternative Infos.
package pkgid

import (
	"crypto/sha1"
	"encoding/hex"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
)

// EmptyID is the ID of a package with no settings, options or significant
// dependencies.
const EmptyID = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

// Info is the identity input of one package.
type Info struct {
	Settings      map[string]string
	Options       map[string]string
	Requires      map[string]RequirementInfo // host dependencies by name
	BuildRequires map[string]RequirementInfo // build-context dependencies by name
}

// NewInfo creates an empty Info.
func NewInfo() *Info {
	return &Info{
		Settings:      map[string]string{},
		Options:       map[string]string{},
		Requires:      map[string]RequirementInfo{},
		BuildRequires: map[string]RequirementInfo{},
	}
}

// Clone returns a deep copy.
func (i *Info) Clone() *Info {
	return &Info{
		Settings:      maps.Clone(i.Settings),
		Options:       maps.Clone(i.Options),
		Requires:      maps.Clone(i.Requires),
		BuildRequires: maps.Clone(i.BuildRequires),
	}
}

// Clear drops every field. Header-only packages use it so that a single
// binary serves every configuration.
func (i *Info) Clear() {
	clear(i.Settings)
	clear(i.Options)
	clear(i.Requires)
	clear(i.BuildRequires)
}

// IsEmpty reports whether the Info has no fields.
func (i *Info) IsEmpty() bool {
	return len(i.Settings) == 0 && len(i.Options) == 0 && len(i.Requires) == 0 && len(i.BuildRequires) == 0
}

// Dumps renders the canonical text that is hashed. Sections and keys are
// sorted; empty sections are omitted.
func (i *Info) Dumps() string {
	var b strings.Builder
	section := func(name string, m map[string]string) {
		if len(m) == 0 {
			return
		}
		b.WriteString("[" + name + "]\n")
		for _, k := range slices.Sorted(maps.Keys(m)) {
			b.WriteString(k + "=" + m[k] + "\n")
		}
	}
	requires := func(name string, m map[string]RequirementInfo) {
		if len(m) == 0 {
			return
		}
		b.WriteString("[" + name + "]\n")
		for _, k := range slices.Sorted(maps.Keys(m)) {
			b.WriteString(m[k].String() + "\n")
		}
	}
	section("settings", i.Settings)
	section("options", i.Options)
	requires("requires", i.Requires)
	requires("build_requires", i.BuildRequires)
	return b.String()
}

// ID returns the package ID.
func (i *Info) ID() string {
	sum := sha1.Sum([]byte(i.Dumps()))
	return hex.EncodeToString(sum[:])
}

// Dependency is one dependency of the node whose ID is being computed.
type Dependency struct {
	Pref    ref.PackageReference
	Context requirement.Context
	Kind    requirement.Kind
	Mode    Mode // per-dependency mode declared by the recipe; empty uses the defaults
}

// DefaultModes are the process-wide modes used when a recipe does not name
// one for a dependency.
type DefaultModes struct {
	Host  Mode // host requires
	Build Mode // tool requires and other build-context dependencies
}

// WithDefaults fills unset modes: semver_mode for host dependencies and
// unrelated_mode for build dependencies.
func (d DefaultModes) WithDefaults() DefaultModes {
	if d.Host == "" {
		d.Host = SemverMode
	}
	if d.Build == "" {
		d.Build = UnrelatedMode
	}
	return d
}

func (d DefaultModes) modeFor(dep Dependency) Mode {
	if dep.Mode != "" {
		return dep.Mode
	}
	if dep.Kind == requirement.TestRequire {
		return UnrelatedMode
	}
	if dep.Context == requirement.Build {
		return d.Build
	}
	return d.Host
}

// Hook rewrites an Info before hashing.
type Hook func(*Info) error

// Compute builds the Info of a node from its settings, options and
// dependencies, applying per-dependency modes first and then the hook.
func Compute(settings, options map[string]string, deps []Dependency, defaults DefaultModes, hook Hook) (*Info, error) {
	defaults = defaults.WithDefaults()
	info := NewInfo()
	maps.Copy(info.Settings, settings)
	maps.Copy(info.Options, options)
	for _, dep := range deps {
		ri, ok := NewRequirementInfo(dep.Pref, defaults.modeFor(dep))
		if !ok {
			continue
		}
		if dep.Context == requirement.Build {
			info.BuildRequires[ri.Name] = ri
		} else {
			info.Requires[ri.Name] = ri
		}
	}
	if hook != nil {
		if err := hook(info); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRecipe, err, "package id hook failed")
		}
	}
	return info, nil
}

// Compatible is one compatibility rule: settings and options to substitute.
// An empty value removes the key.
type Compatible struct {
	Settings map[string]string
	Options  map[string]string
}

// Apply returns a copy of i with the substitutions of c.
func (i *Info) Apply(c Compatible) *Info {
	out := i.Clone()
	for k, v := range c.Settings {
		if v == "" {
			delete(out.Settings, k)
		} else {
			out.Settings[k] = v
		}
	}
	for k, v := range c.Options {
		if v == "" {
			delete(out.Options, k)
		} else {
			out.Options[k] = v
		}
	}
	return out
}

// Compatibles expands rules into alternative Infos in declaration order.
// Alternatives whose ID equals the original or an earlier alternative are
// dropped.
func Compatibles(info *Info, rules []Compatible) []*Info {
	seen := map[string]bool{info.ID(): true}
	var out []*Info
	for _, rule := range rules {
		alt := info.Apply(rule)
		id := alt.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, alt)
	}
	return out
}
