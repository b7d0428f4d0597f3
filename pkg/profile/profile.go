// Package profile loads build profiles.
//
// A profile is a TOML file with four tables:
//
//	[settings]
//	os = "Linux"
//	compiler = "gcc"
//	"compiler.version" = "13"
//	"zlib:build_type" = "Debug"
//
//	[build_settings]
//	os = "Linux"
//
//	[options]
//	"*:shared" = "True"
//	"zlib:shared!" = "False"
//
//	[tool_requires]
//	"*" = ["cmake/3.27"]
//
// Keys are assignments without their value: an optional "pattern:" scope,
// the key, and an optional "!" marking the assignment important. Entries keep
// their document order, so a later entry wins over an earlier one exactly as
// it would on the command line. Build settings apply to nodes in the build
// context; when the table is absent the host settings are used.
package profile

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/values"
)

// ToolRequire injects a tool requirement into every host node matching
// Pattern.
type ToolRequire struct {
	Pattern string
	Ref     ref.Reference
}

// Profile is an ordered set of assignments applied to every node of a graph.
type Profile struct {
	Name          string
	Settings      []values.Assignment
	BuildSettings []values.Assignment
	Options       []values.Assignment
	ToolRequires  []ToolRequire
}

// New returns an empty profile.
func New(name string) *Profile {
	return &Profile{Name: name}
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "profile %s not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read profile %s", path)
	}
	return Parse(data, path)
}

// Parse decodes a profile. source names the profile in provenance records.
func Parse(data []byte, source string) (*Profile, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse profile %s", source)
	}

	p := New(source)
	for _, key := range md.Keys() {
		if len(key) < 2 || md.Type(key...) == "Hash" {
			if len(key) == 1 && !known(key[0]) {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "profile %s: unknown table [%s]", source, key[0])
			}
			continue
		}
		lhs := strings.Join(key[1:], ".")
		val := lookup(raw, key)
		switch key[0] {
		case "settings", "build_settings", "options":
			s, ok := val.(string)
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "profile %s: %s must be a string", source, key)
			}
			a, err := values.ParseAssignment(lhs + "=" + s)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "profile %s", source)
			}
			a.Origin, a.Source = values.OriginProfile, source
			switch key[0] {
			case "settings":
				p.Settings = append(p.Settings, a)
			case "build_settings":
				p.BuildSettings = append(p.BuildSettings, a)
			default:
				p.Options = append(p.Options, a)
			}
		case "tool_requires":
			refs, err := toolRefs(val)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "profile %s: tool_requires %q", source, lhs)
			}
			for _, r := range refs {
				p.ToolRequires = append(p.ToolRequires, ToolRequire{Pattern: lhs, Ref: r})
			}
		}
	}
	return p, nil
}

func known(table string) bool {
	switch table {
	case "settings", "build_settings", "options", "tool_requires":
		return true
	}
	return false
}

func lookup(raw map[string]any, key toml.Key) any {
	var cur any = raw
	for _, part := range key {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func toolRefs(val any) ([]ref.Reference, error) {
	var items []any
	switch v := val.(type) {
	case string:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "expected a reference or a list of references")
	}
	out := make([]ref.Reference, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "expected a reference, got %v", it)
		}
		r, err := ref.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Clone returns a copy that can be extended without touching p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return New("")
	}
	c := *p
	c.Settings = append([]values.Assignment(nil), p.Settings...)
	c.BuildSettings = append([]values.Assignment(nil), p.BuildSettings...)
	c.Options = append([]values.Assignment(nil), p.Options...)
	c.ToolRequires = append([]ToolRequire(nil), p.ToolRequires...)
	return &c
}

// Apply appends command-line assignments after the profile's own, so they
// take precedence.
func (p *Profile) Apply(settings, options []string) error {
	s, err := values.ParseAssignments(settings, values.OriginCLI, "command line")
	if err != nil {
		return err
	}
	o, err := values.ParseAssignments(options, values.OriginCLI, "command line")
	if err != nil {
		return err
	}
	p.Settings = append(p.Settings, s...)
	p.Options = append(p.Options, o...)
	return nil
}

// SettingsFor returns the setting assignments for a node in the build
// context (build=true) or the host context.
func (p *Profile) SettingsFor(build bool) []values.Assignment {
	if p == nil {
		return nil
	}
	if build && len(p.BuildSettings) > 0 {
		return p.BuildSettings
	}
	return p.Settings
}
