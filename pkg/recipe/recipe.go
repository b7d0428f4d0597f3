// Package recipe defines the narrow callback interface through which the
// resolver consults recipes.
//
// A recipe is never executed as free-form code. The graph builder calls a
// fixed set of lifecycle callbacks with typed inputs:
//
//   - [Recipe.Options] declares the options and their defaults;
//   - [Recipe.Configure] adjusts the node's own options and settings and
//     imposes options on dependencies, on speculative copies;
//   - [Recipe.Requirements] declares the dependencies once the
//     configuration is frozen;
//   - [Recipe.PackageID], [Recipe.Modes] and [Recipe.Compatibility] shape the
//     package identity.
//
// [Func] adapts plain functions and static data to the interface, and
// [Catalog] is an in-memory [Evaluator]. Recipe files on disk are handled by
// the hclrecipe subpackage.
package recipe

import (
	"context"

	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// Recipe is the callback interface of one recipe version.
type Recipe interface {
	Options() values.OptionDefs
	Configure(c *ConfigureContext) error
	Requirements(c *RequirementsContext) ([]requirement.Requirement, error)
	PackageID(info *pkgid.Info) error
	Compatibility(info *pkgid.Info) []pkgid.Compatible
	// Modes returns per-dependency requirement modes by dependency name.
	Modes() map[string]pkgid.Mode
}

// Evaluator loads recipes. The returned reference carries the recipe
// revision.
type Evaluator interface {
	Load(ctx context.Context, r ref.Reference) (Recipe, ref.Reference, error)
}

// ConfigureContext is passed to [Recipe.Configure]. Options and Settings are
// copies owned by the call; the builder decides what to keep.
type ConfigureContext struct {
	Ref      ref.Reference
	Context  requirement.Context
	Options  *values.Values
	Settings *values.Values

	downstream []values.Assignment
}

// NewConfigureContext creates a context for one Configure call.
func NewConfigureContext(r ref.Reference, ctx requirement.Context, options, settings *values.Values) *ConfigureContext {
	return &ConfigureContext{Ref: r, Context: ctx, Options: options, Settings: settings}
}

// SetDependencyOption imposes key=value on every dependency matching
// pattern. A pattern without "/" matches a package name.
func (c *ConfigureContext) SetDependencyOption(pattern, key, value string) {
	c.downstream = append(c.downstream, values.Assignment{
		Pattern: pattern,
		Key:     key,
		Value:   value,
		Origin:  values.OriginRecipe,
		Source:  c.Ref.String(),
	})
}

// DependencyOptions returns the assignments made with SetDependencyOption,
// in order.
func (c *ConfigureContext) DependencyOptions() []values.Assignment {
	return append([]values.Assignment(nil), c.downstream...)
}

// RequirementsContext is passed to [Recipe.Requirements]. The values are
// frozen and must not be modified.
type RequirementsContext struct {
	Ref      ref.Reference
	Context  requirement.Context
	Options  *values.Values
	Settings *values.Values
}
