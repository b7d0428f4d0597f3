package hclrecipe

import (
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

type configureBody struct {
	Condition         *bool             `hcl:"condition,optional"`
	RemoveOptions     []string          `hcl:"remove_options,optional"`
	RemoveSettings    []string          `hcl:"remove_settings,optional"`
	SetOptions        map[string]string `hcl:"set_options,optional"`
	DependencyOptions map[string]string `hcl:"dependency_options,optional"`
}

type requireBody struct {
	Condition *bool             `hcl:"condition,optional"`
	Visible   *bool             `hcl:"visible,optional"`
	Override  bool              `hcl:"override,optional"`
	Force     bool              `hcl:"force,optional"`
	Build     bool              `hcl:"build,optional"`
	Options   map[string]string `hcl:"options,optional"`
}

type packageIDBody struct {
	Condition      *bool    `hcl:"condition,optional"`
	HeaderOnly     bool     `hcl:"header_only,optional"`
	RemoveOptions  []string `hcl:"remove_options,optional"`
	RemoveSettings []string `hcl:"remove_settings,optional"`
}

type compatibilityBody struct {
	Condition *bool             `hcl:"condition,optional"`
	Settings  map[string]string `hcl:"settings,optional"`
	Options   map[string]string `hcl:"options,optional"`
}

var functions = map[string]function.Function{
	"lookup":   stdlib.LookupFunc,
	"contains": stdlib.ContainsFunc,
}

// evalContext exposes options and settings as string objects.
func evalContext(options, settings map[string]string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"options":  stringObject(options),
			"settings": stringObject(settings),
		},
		Functions: functions,
	}
}

func stringObject(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(m))
	for k, v := range m {
		attrs[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(attrs)
}

func enabled(cond *bool) bool { return cond == nil || *cond }

// Configure implements [recipe.Recipe]. Blocks apply in order; each block
// sees the changes of the blocks before it.
func (rec *Recipe) Configure(c *recipe.ConfigureContext) error {
	for _, body := range rec.configure {
		var cfg configureBody
		if diags := gohcl.DecodeBody(body, evalContext(c.Options.Map(), c.Settings.Map()), &cfg); diags.HasErrors() {
			return rec.fail(diags, "configure")
		}
		if !enabled(cfg.Condition) {
			continue
		}
		c.Options.RemoveSafe(cfg.RemoveOptions...)
		c.Settings.RemoveSafe(cfg.RemoveSettings...)
		for _, k := range slices.Sorted(maps.Keys(cfg.SetOptions)) {
			c.Options.Set(k, cfg.SetOptions[k])
		}
		for _, k := range slices.Sorted(maps.Keys(cfg.DependencyOptions)) {
			i := strings.LastIndexByte(k, ':')
			if i <= 0 {
				return errors.New(errors.ErrCodeRecipe, "%s: dependency option %q must have the form pattern:key", rec.owner(), k)
			}
			c.SetDependencyOption(k[:i], k[i+1:], cfg.DependencyOptions[k])
		}
	}
	return nil
}

// Requirements implements [recipe.Recipe]. Requirements are returned in
// declaration order; those whose condition is false are left out.
func (rec *Recipe) Requirements(c *recipe.RequirementsContext) ([]requirement.Requirement, error) {
	ectx := evalContext(c.Options.Map(), c.Settings.Map())
	var out []requirement.Requirement
	for _, rb := range rec.requires {
		var b requireBody
		if diags := gohcl.DecodeBody(rb.body, ectx, &b); diags.HasErrors() {
			return nil, rec.fail(diags, string(rb.kind)+" "+rb.declared)
		}
		if !enabled(b.Condition) {
			continue
		}

		var opts []requirement.Option
		switch rb.kind {
		case requirement.ToolRequire:
			opts = append(opts, requirement.AsTool())
		case requirement.TestRequire:
			opts = append(opts, requirement.AsTest())
		}
		if b.Build {
			opts = append(opts, requirement.WithBuildContext())
		}
		if b.Visible != nil && !*b.Visible {
			opts = append(opts, requirement.Private())
		}
		if b.Override {
			opts = append(opts, requirement.AsOverride())
		}
		if b.Force {
			opts = append(opts, requirement.Forced())
		}
		for _, k := range slices.Sorted(maps.Keys(b.Options)) {
			opts = append(opts, requirement.WithOptions(values.Assignment{
				Key:    k,
				Value:  b.Options[k],
				Origin: values.OriginRecipe,
				Source: rec.owner(),
			}))
		}

		req, err := requirement.Parse(rb.declared, opts...)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRecipe, err, "%s: %s %q", rec.owner(), rb.kind, rb.declared)
		}
		out = append(out, req)
	}
	return out, nil
}

// PackageID implements [recipe.Recipe]. Removing a setting also removes its
// sub-settings.
func (rec *Recipe) PackageID(info *pkgid.Info) error {
	for _, body := range rec.packageID {
		var b packageIDBody
		if diags := gohcl.DecodeBody(body, evalContext(info.Options, info.Settings), &b); diags.HasErrors() {
			return rec.fail(diags, "package_id")
		}
		if !enabled(b.Condition) {
			continue
		}
		if b.HeaderOnly {
			info.Clear()
			continue
		}
		for _, k := range b.RemoveOptions {
			delete(info.Options, k)
		}
		for _, k := range b.RemoveSettings {
			removeTree(info.Settings, k)
		}
	}
	return nil
}

func removeTree(m map[string]string, key string) {
	delete(m, key)
	prefix := key + "."
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			delete(m, k)
		}
	}
}

// Compatibility implements [recipe.Recipe]. A rule whose expressions fail
// to evaluate is skipped.
func (rec *Recipe) Compatibility(info *pkgid.Info) []pkgid.Compatible {
	ectx := evalContext(info.Options, info.Settings)
	var out []pkgid.Compatible
	for _, body := range rec.compat {
		var b compatibilityBody
		if diags := gohcl.DecodeBody(body, ectx, &b); diags.HasErrors() || !enabled(b.Condition) {
			continue
		}
		out = append(out, pkgid.Compatible{Settings: b.Settings, Options: b.Options})
	}
	return out
}
