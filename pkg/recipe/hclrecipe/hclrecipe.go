// Package hclrecipe reads recipes written in HCL.
//
// A recipe file declares its options, configuration rules, requirements and
// identity rules as blocks. Blocks that depend on the node configuration
// are kept as raw bodies and decoded on every callback, with the node's
// options and settings available as the variables options and settings:
//
//	name    = "app"
//	version = "1.0"
//
//	options {
//	  shared = ["True", "False"]
//	  ssl    = ["True", "False"]
//	}
//
//	default_options {
//	  shared = "False"
//	  ssl    = "True"
//	}
//
//	configure {
//	  condition          = settings.os == "Windows"
//	  remove_options     = ["fPIC"]
//	  dependency_options = { "zlib:shared" = "True" }
//	}
//
//	requires "zlib/[>=1.2 <2]" {
//	  condition = options.ssl == "True"
//	  options   = { shared = options.shared }
//	}
//
//	tool_requires "cmake/3.27" {}
//
//	package_id {
//	  remove_settings = ["compiler.cppstd"]
//	}
//
//	requirement_modes {
//	  zlib = "full_mode"
//	}
//
//	compatibility {
//	  settings = { "compiler.cppstd" = "14" }
//	}
//
// Dotted setting names are read with an index: settings["compiler.version"].
// The functions lookup and contains are available in every expression.
package hclrecipe

import (
	"fmt"
	"maps"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// FileName is the recipe file name inside a catalog directory.
const FileName = "recipe.hcl"

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name"},
		{Name: "version"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "options"},
		{Type: "default_options"},
		{Type: "configure"},
		{Type: "requires", LabelNames: []string{"ref"}},
		{Type: "tool_requires", LabelNames: []string{"ref"}},
		{Type: "test_requires", LabelNames: []string{"ref"}},
		{Type: "package_id"},
		{Type: "requirement_modes"},
		{Type: "compatibility"},
	},
}

// Recipe is a parsed recipe file. It implements [recipe.Recipe].
type Recipe struct {
	Name    string
	Version string

	source    string
	ref       ref.Reference
	options   values.OptionDefs
	modes     map[string]pkgid.Mode
	configure []hcl.Body
	requires  []requireBlock
	packageID []hcl.Body
	compat    []hcl.Body
}

type requireBlock struct {
	declared string
	kind     requirement.Kind
	body     hcl.Body
	rng      hcl.Range
}

var _ recipe.Recipe = (*Recipe)(nil)

// Parse parses recipe source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Recipe, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeRecipe, diags, "parse %s", filename)
	}
	return decodeFile(file.Body, filename)
}

// ParseFile reads and parses a recipe file.
func ParseFile(path string) (*Recipe, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "recipe %s", path)
		}
		return nil, fmt.Errorf("read recipe %s: %w", path, err)
	}
	return Parse(src, path)
}

func decodeFile(body hcl.Body, filename string) (*Recipe, error) {
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeRecipe, diags, "decode %s", filename)
	}

	rec := &Recipe{
		source:  filename,
		options: values.OptionDefs{Allowed: map[string][]string{}, Defaults: map[string]string{}},
		modes:   map[string]pkgid.Mode{},
	}
	for name, dst := range map[string]*string{"name": &rec.Name, "version": &rec.Version} {
		if attr, ok := content.Attributes[name]; ok {
			diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, dst)...)
		}
	}

	seen := map[string]bool{}
	for _, block := range content.Blocks {
		switch block.Type {
		case "options", "default_options", "requirement_modes":
			if seen[block.Type] {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate " + block.Type + " block",
					Subject:  block.DefRange.Ptr(),
				})
				continue
			}
			seen[block.Type] = true
		}

		switch block.Type {
		case "options":
			diags = append(diags, rec.decodeOptions(block.Body)...)
		case "default_options":
			diags = append(diags, rec.decodeDefaults(block.Body)...)
		case "requirement_modes":
			diags = append(diags, rec.decodeModes(block.Body)...)
		case "configure":
			rec.configure = append(rec.configure, block.Body)
		case "package_id":
			rec.packageID = append(rec.packageID, block.Body)
		case "compatibility":
			rec.compat = append(rec.compat, block.Body)
		case "requires", "tool_requires", "test_requires":
			rec.requires = append(rec.requires, requireBlock{
				declared: block.Labels[0],
				kind:     blockKinds[block.Type],
				body:     block.Body,
				rng:      block.DefRange,
			})
		}
	}
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeRecipe, diags, "decode %s", filename)
	}

	// Requirement labels are static; reject malformed ones at load time.
	for _, rb := range rec.requires {
		if _, err := requirement.Parse(rb.declared); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRecipe, err, "%s: %s %q", rb.rng, rb.kind, rb.declared)
		}
	}
	for k := range rec.options.Defaults {
		if !rec.options.Declared(k) {
			return nil, errors.New(errors.ErrCodeRecipe, "%s: default for undeclared option %q", filename, k)
		}
	}
	return rec, nil
}

var blockKinds = map[string]requirement.Kind{
	"requires":      requirement.Require,
	"tool_requires": requirement.ToolRequire,
	"test_requires": requirement.TestRequire,
}

func (rec *Recipe) decodeOptions(body hcl.Body) hcl.Diagnostics {
	attrs, diags := body.JustAttributes()
	for name, attr := range attrs {
		v, vdiags := attr.Expr.Value(nil)
		diags = append(diags, vdiags...)
		if vdiags.HasErrors() {
			continue
		}
		if v.Type() == cty.String {
			rec.options.Allowed[name] = []string{v.AsString()}
			continue
		}
		var allowed []string
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &allowed)...)
		rec.options.Allowed[name] = allowed
	}
	return diags
}

func (rec *Recipe) decodeDefaults(body hcl.Body) hcl.Diagnostics {
	attrs, diags := body.JustAttributes()
	for name, attr := range attrs {
		var def string
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &def)...)
		rec.options.Defaults[name] = def
	}
	return diags
}

func (rec *Recipe) decodeModes(body hcl.Body) hcl.Diagnostics {
	attrs, diags := body.JustAttributes()
	for name, attr := range attrs {
		var s string
		if d := gohcl.DecodeExpression(attr.Expr, nil, &s); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		mode, err := pkgid.ParseMode(s)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid requirement mode",
				Detail:   err.Error(),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		rec.modes[name] = mode
	}
	return diags
}

// Bind returns a copy that reports r as its reference in dependency option
// sources and errors.
func (rec *Recipe) Bind(r ref.Reference) *Recipe {
	cp := *rec
	cp.ref = r
	return &cp
}

// Reference returns the reference declared by the name and version
// attributes, which is zero when the file declares no name.
func (rec *Recipe) Reference() (ref.Reference, error) {
	if rec.Name == "" {
		return ref.Reference{}, nil
	}
	if rec.Version == "" {
		return ref.Reference{}, errors.New(errors.ErrCodeRecipe, "%s: name %q declared without version", rec.source, rec.Name)
	}
	return ref.Parse(rec.Name + "/" + rec.Version)
}

// Options implements [recipe.Recipe].
func (rec *Recipe) Options() values.OptionDefs { return rec.options }

// Modes implements [recipe.Recipe].
func (rec *Recipe) Modes() map[string]pkgid.Mode {
	return maps.Clone(rec.modes)
}

func (rec *Recipe) owner() string {
	if !rec.ref.IsZero() {
		return rec.ref.String()
	}
	return rec.source
}

func (rec *Recipe) fail(diags hcl.Diagnostics, what string) error {
	return errors.Wrap(errors.ErrCodeRecipe, diags, "%s: %s", rec.owner(), what).WithRefs(rec.owner())
}
