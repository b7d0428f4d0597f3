package graph

import (
	"fmt"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// configure creates the pending node for r reached from parent through
// edge. Both are nil for the root. The node's options and settings are
// final when configure returns.
func (s *build) configure(r ref.Reference, rec recipe.Recipe, ctx requirement.Context, parent *Node, edge *requirement.Requirement) (*Node, error) {
	n := &Node{
		Ref:     r,
		Context: ctx,
		Recipe:  rec,
		State:   Pending,
		parent:  parent,
	}
	if parent != nil {
		n.Path = parent.chain()
		n.depth = parent.depth + 1
		n.overrides = append(append([]override(nil), parent.overrides...), overridesOf(parent)...)
	}
	isConsumer := parent == nil

	assignments := s.optionAssignments(r, parent, edge)
	opts, conflicts := values.Merge(rec.Options().DefaultValues(), assignments, r, isConsumer)
	settings, _ := values.Merge(nil, s.prof.SettingsFor(ctx == requirement.Build), r, isConsumer)

	c := recipe.NewConfigureContext(r, ctx, opts.Clone(), settings.Clone())
	if err := rec.Configure(c); err != nil {
		return nil, recipeError(n, "configure", err)
	}
	configured := restoreImportant(c.Options, opts, r, isConsumer)

	if err := rec.Options().Filter(configured, r.String()); err != nil {
		return nil, withPath(err, n.Path)
	}
	if err := s.settings.Validate(c.Settings); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSetting, err, "%s: invalid settings", r).WithPath(n.Path)
	}

	n.Options = configured
	n.Settings = c.Settings
	n.Conflicts = conflicts
	n.downstream = c.DependencyOptions()
	if parent != nil {
		n.downstream = append(n.downstream, parent.downstream...)
	}
	n.key = identityKey(r, ctx, configured, c.Settings)

	for _, cf := range conflicts {
		s.warn(WarnOptionsConflict, n, fmt.Sprintf("options conflict for %s: %s", r, cf))
	}
	return n, nil
}

// optionAssignments returns the option assignments for r in increasing
// precedence: the requirement's own options, the dependency options of the
// ancestors from the parent up to the root, then the profile and command
// line.
func (s *build) optionAssignments(r ref.Reference, parent *Node, edge *requirement.Requirement) []values.Assignment {
	var out []values.Assignment
	if edge != nil {
		for _, a := range edge.Options {
			if a.IsDirect() {
				a.Pattern = r.Name
			}
			out = append(out, a)
		}
	}
	if parent != nil {
		out = append(out, parent.downstream...)
	}
	return append(out, s.prof.Options...)
}

// restoreImportant reapplies the important assignments of before that
// Configure changed in after. Removed keys stay removed.
func restoreImportant(after, before *values.Values, r ref.Reference, isConsumer bool) *values.Values {
	var pinned []values.Assignment
	for _, k := range before.Keys() {
		w, ok := before.Winner(k)
		if !ok || !w.Important || !after.Has(k) || after.GetSafe(k, "") == w.Value {
			continue
		}
		pinned = append(pinned, values.Assignment{
			Pattern:   w.Pattern,
			Key:       w.Key,
			Value:     w.Value,
			Important: true,
			Origin:    w.Origin,
			Source:    w.Source,
		})
	}
	if len(pinned) == 0 {
		return after
	}
	out, _ := values.Merge(after, pinned, r, isConsumer)
	return out
}

// overridesOf returns the overrides n declares for its descendants.
func overridesOf(n *Node) []override {
	if n.Requirements == nil {
		return nil
	}
	var out []override
	for _, req := range n.Requirements.Overriding() {
		out = append(out, override{req: req, by: n.Label(), depth: n.depth})
	}
	return out
}

func identityKey(r ref.Reference, ctx requirement.Context, options, settings *values.Values) string {
	return r.WithoutRevision().String() + "|" + string(ctx) + "|" + options.String() + "|" + settings.String()
}
