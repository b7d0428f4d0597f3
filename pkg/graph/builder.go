package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/profile"
	"github.com/matzehuels/stackforge/pkg/ranges"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// Root is the starting point of a build: a recipe, or a consumer when Ref
// is zero. A consumer takes its requirements from Recipe when set, otherwise
// from Requires.
type Root struct {
	Ref ref.Reference
	// Recipe is used as is when set; otherwise Ref is loaded through the
	// evaluator.
	Recipe   recipe.Recipe
	Requires []requirement.Requirement
}

// Consumer returns a root made of command-line requirements.
func Consumer(reqs ...requirement.Requirement) Root {
	return Root{Requires: reqs}
}

// FromRef returns a root loading r through the evaluator.
func FromRef(r ref.Reference) Root {
	return Root{Ref: r}
}

func (r Root) String() string {
	if r.Ref.IsZero() {
		return ConsumerID
	}
	return r.Ref.String()
}

// Builder builds dependency graphs.
type Builder struct {
	Evaluator recipe.Evaluator
	// Ranges resolves version ranges. When nil, an evaluator that is also a
	// [ranges.Source] is used as the only source.
	Ranges *ranges.Resolver
	// Settings validates node settings. Nil means
	// [values.DefaultSettingsDefinition].
	Settings *values.SettingsDefinition
	Logger   *log.Logger
}

// Build resolves the graph of root under prof, which may be nil. The result
// is all-or-nothing: on error no graph is returned.
func (b *Builder) Build(ctx context.Context, root Root, prof *profile.Profile) (*DepsGraph, error) {
	s := b.newBuild(prof)
	start := time.Now()
	observability.Resolve().OnResolveStart(ctx, root.String())

	g, err := s.run(ctx, root)
	count := 0
	if g != nil {
		count = g.Len()
	}
	observability.Resolve().OnResolveComplete(ctx, root.String(), count, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("graph built", "root", root.String(), "nodes", count, "duration", time.Since(start))
	return g, nil
}

type build struct {
	eval     recipe.Evaluator
	resolver *ranges.Resolver
	settings *values.SettingsDefinition
	logger   *log.Logger
	prof     *profile.Profile

	g      *DepsGraph
	queue  []*Node
	byKey  map[string]*Node
	claims map[string]*claim
	used   map[string]bool
}

// claim records the reference chosen for one name and context in a scope.
type claim struct {
	ref         ref.Reference
	by          *Node
	depth       int
	forced      bool
	pinned      bool
	constraints []ranges.Constraint
	nodes       []*Node
}

func (b *Builder) newBuild(prof *profile.Profile) *build {
	s := &build{
		eval:     b.Evaluator,
		resolver: b.Ranges,
		settings: b.Settings,
		logger:   b.Logger,
		prof:     prof,
		g:        newDepsGraph(),
		byKey:    make(map[string]*Node),
		claims:   make(map[string]*claim),
		used:     make(map[string]bool),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.settings == nil {
		s.settings = values.DefaultSettingsDefinition()
	}
	if s.prof == nil {
		s.prof = profile.New("")
	}
	if s.resolver == nil {
		var local ranges.Source
		if src, ok := b.Evaluator.(ranges.Source); ok {
			local = src
		}
		s.resolver = ranges.NewResolver(local, nil, ranges.Options{Logger: s.logger})
	}
	return s
}

func (s *build) run(ctx context.Context, root Root) (*DepsGraph, error) {
	rn, err := s.rootNode(ctx, root)
	if err != nil {
		return nil, err
	}
	if err := s.add(rn); err != nil {
		return nil, err
	}
	s.queue = append(s.queue, rn)

	for len(s.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := s.queue[0]
		s.queue = s.queue[1:]
		if n.dropped {
			continue
		}
		if err := s.expand(ctx, n); err != nil {
			n.State = Error
			return nil, err
		}
	}
	return s.finalize()
}

func (s *build) rootNode(ctx context.Context, root Root) (*Node, error) {
	if root.Ref.IsZero() {
		settings, _ := values.Merge(nil, s.prof.SettingsFor(false), ref.Reference{}, true)
		if err := s.settings.Validate(settings); err != nil {
			return nil, err
		}
		rec := root.Recipe
		if rec == nil {
			rec = &recipe.Func{Requires: root.Requires}
		}
		return &Node{
			Context:  requirement.Host,
			Options:  values.New(),
			Settings: settings,
			Recipe:   rec,
			Visible:  true,
			Virtual:  true,
			key:      ConsumerID,
		}, nil
	}

	rec, r := root.Recipe, root.Ref
	if rec == nil {
		var err error
		if rec, r, err = s.load(ctx, root.Ref, nil); err != nil {
			return nil, err
		}
	}
	n, err := s.configure(r, rec, requirement.Host, nil, nil)
	if err != nil {
		return nil, err
	}
	n.Visible = true
	return n, nil
}

func (s *build) load(ctx context.Context, r ref.Reference, parent *Node) (recipe.Recipe, ref.Reference, error) {
	rec, got, err := s.eval.Load(ctx, r)
	if err != nil {
		if parent != nil {
			err = withPath(err, parent.chain())
		}
		return nil, ref.Reference{}, err
	}
	return rec, got, nil
}

// expand evaluates the requirements of n and links its dependencies.
func (s *build) expand(ctx context.Context, n *Node) error {
	n.State = Evaluating
	reqs, err := n.Recipe.Requirements(&recipe.RequirementsContext{
		Ref:      n.Ref,
		Context:  n.Context,
		Options:  n.Options,
		Settings: n.Settings,
	})
	if err != nil {
		return recipeError(n, "requirements", err)
	}
	reqs = append(reqs, s.injectedTools(n)...)

	set := requirement.NewSet()
	by := n.Label()
	for _, req := range reqs {
		if err := s.checkLoop(n, req); err != nil {
			return err
		}
		resolved, err := s.resolve(ctx, n, req)
		if err != nil {
			return err
		}
		if err := set.Add(resolved, by); err != nil {
			return withPath(err, n.Path)
		}
	}
	// Ancestors closer to the root are applied last and win.
	for _, o := range slices.Backward(n.overrides) {
		if set.ApplyOverride(o.req.Name(), o.req.Context, o.req.Ref, o.by) {
			s.warn(WarnOverride, n, fmt.Sprintf("%s requirement on %s overridden to %s by %s", by, o.req.Name(), o.req.Ref, o.by))
		}
	}
	n.Requirements = set

	for _, req := range set.Requirements() {
		if err := s.addDependency(ctx, n, req); err != nil {
			return err
		}
	}
	n.State = Expanded
	return nil
}

// injectedTools returns the profile tool requirements matching n. Only host
// nodes receive them, and never a tool its own requirement.
func (s *build) injectedTools(n *Node) []requirement.Requirement {
	if n.Virtual || n.Context != requirement.Host {
		return nil
	}
	var out []requirement.Requirement
	for _, tr := range s.prof.ToolRequires {
		if tr.Ref.Name == n.Ref.Name || !values.Match(tr.Pattern, n.Ref, n.IsRoot()) {
			continue
		}
		out = append(out, requirement.New(tr.Ref, requirement.AsTool(), requirement.Transitive()))
	}
	return out
}

// checkLoop fails when req names a package already on the path to n in the
// same context.
func (s *build) checkLoop(n *Node, req requirement.Requirement) error {
	if req.OverrideOnly() {
		return nil
	}
	chain := lineage(n)
	for i, a := range chain {
		if a.Virtual || a.Ref.Name != req.Name() || a.Context != req.Context {
			continue
		}
		cycle := make([]string, 0, len(chain)-i+1)
		for _, c := range chain[i:] {
			cycle = append(cycle, c.Label())
		}
		cycle = append(cycle, req.String())
		return errors.New(errors.ErrCodeGraphLoop, "loop detected: %s", joinPath(cycle)).
			WithRefs(a.Ref.String(), req.String()).WithPath(n.Path)
	}
	return nil
}

// lineage returns the nodes on the path from the root to n, n included.
func lineage(n *Node) []*Node {
	var out []*Node
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	slices.Reverse(out)
	return out
}

// resolve turns a range requirement into a concrete one. Concrete
// requirements are returned unchanged.
func (s *build) resolve(ctx context.Context, n *Node, req requirement.Requirement) (requirement.Requirement, error) {
	if req.Resolved() {
		return req, nil
	}
	if !req.IsRange() {
		return req, errors.New(errors.ErrCodeInvalidReference, "requirement %s has neither version nor range", req.Declared()).WithPath(n.chain())
	}
	if o, ok := lookupOverride(n.overrides, req); ok {
		s.warn(WarnOverride, n, fmt.Sprintf("%s requirement %s overridden to %s by %s", n.Label(), req.Declared(), o.req.Ref, o.by))
		return req.Resolve(o.req.Ref), nil
	}

	c := ranges.ConstraintOf(req, n.Label())
	cl := s.claims[claimKey(childScope(n, req), req.Name(), req.Context)]
	if cl == nil {
		got, err := s.resolver.Resolve(ctx, req.Name(), req.Context, []ranges.Constraint{c})
		if err != nil {
			return req, withPath(err, n.chain())
		}
		return req.Resolve(got.WithoutRevision()), nil
	}

	if admits(c, cl.ref) {
		return req.Resolve(cl.ref.WithoutRevision()), nil
	}
	if cl.forced {
		s.warn(WarnOverride, n, fmt.Sprintf("%s requirement %s replaced by %s forced by %s", n.Label(), req.Declared(), cl.ref, cl.by.Label()))
		return req.Resolve(cl.ref.WithoutRevision()), nil
	}
	if !cl.pinned {
		cs := append(slices.Clone(cl.constraints), c)
		if _, err := s.resolver.Resolve(ctx, req.Name(), req.Context, cs); err != nil {
			return req, withPath(err, n.chain())
		}
	}
	return req, versionConflict(n, req.Declared(), cl)
}

func admits(c ranges.Constraint, r ref.Reference) bool {
	return r.User == c.User && r.Channel == c.Channel && c.Range.Contains(r.Version)
}

func lookupOverride(ovs []override, req requirement.Requirement) (override, bool) {
	for _, o := range ovs {
		if o.req.Name() == req.Name() && o.req.Context == req.Context {
			return o, true
		}
	}
	return override{}, false
}

func versionConflict(n *Node, wanted string, cl *claim) error {
	return errors.New(errors.ErrCodeVersionConflict,
		"version conflict: %s requires %s, but %s requires %s; add an override for %s at the root",
		n.Label(), wanted, cl.by.Label(), cl.ref.String(), cl.ref.Name).
		WithRefs(wanted, cl.ref.String(), n.Label(), cl.by.Label()).
		WithPath(n.Path)
}

// addDependency links n to the node for req, creating it when needed.
func (s *build) addDependency(ctx context.Context, n *Node, req requirement.Requirement) error {
	scope := childScope(n, req)
	key := claimKey(scope, req.Name(), req.Context)
	cl := s.claims[key]
	redirect := false
	if cl != nil && !sameRef(cl.ref, req.Ref) {
		switch {
		case (req.Override || req.Force) && (!cl.forced || n.depth < cl.depth):
			redirect = true
		case cl.forced:
			s.warn(WarnOverride, n, fmt.Sprintf("%s requirement %s replaced by %s forced by %s", n.Label(), req.Ref, cl.ref, cl.by.Label()))
			n.Requirements.ApplyOverride(req.Name(), req.Context, cl.ref.WithoutRevision(), cl.by.Label())
			req = req.Resolve(cl.ref.WithoutRevision())
		default:
			return versionConflict(n, req.Ref.String(), cl)
		}
	}

	rec, got, err := s.load(ctx, req.Ref, n)
	if err != nil {
		return err
	}
	child, err := s.configure(got, rec, req.Context, n, &req)
	if err != nil {
		return err
	}
	child.scope = scope
	visible := n.Visible && req.Visible

	if existing := s.byKey[child.key]; existing != nil {
		if s.g.dag.Reaches(existing.ID, n.ID) {
			cycle := s.g.dag.PathTo(existing.ID, n.ID)
			return errors.New(errors.ErrCodeGraphLoop, "loop detected: %s -> %s", joinPath(cycle), existing.ID).
				WithRefs(existing.Label()).WithPath(n.Path)
		}
		existing.Visible = existing.Visible || visible
		child = existing
	} else {
		child.Visible = visible
		if cl != nil && !redirect && len(cl.nodes) > 0 {
			other := cl.nodes[0]
			s.warn(WarnOptionsConflict, child, fmt.Sprintf("%s is required with options %q by %s and with %q by %s; both configurations are kept",
				child.Label(), child.Options.String(), n.Label(), other.Options.String(), firstRequirer(other)))
		}
		if err := s.add(child); err != nil {
			return err
		}
		s.queue = append(s.queue, child)
	}
	if err := s.g.link(n, child, req); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "link %s to %s", n.ID, child.ID)
	}

	switch {
	case cl == nil:
		cl = &claim{ref: got, by: n, depth: n.depth}
		s.claims[key] = cl
	case redirect:
		s.redirect(cl, child, n, req)
		cl.ref, cl.by, cl.depth = got, n, n.depth
		cl.constraints, cl.pinned = nil, false
	}
	if !slices.Contains(cl.nodes, child) {
		cl.nodes = append(cl.nodes, child)
	}
	if req.IsRange() {
		cl.constraints = append(cl.constraints, ranges.ConstraintOf(req, n.Label()))
	} else {
		cl.pinned = true
	}
	if req.Override || req.Force {
		cl.forced = true
	}
	return nil
}

// redirect points every edge to the nodes of cl at replacement and drops
// what is no longer reachable. Afterwards cl holds replacement alone.
func (s *build) redirect(cl *claim, replacement, by *Node, req requirement.Requirement) {
	olds := slices.Clone(cl.nodes)
	cl.nodes = []*Node{replacement}
	for _, old := range olds {
		if old == replacement || old.dropped {
			continue
		}
		parents := slices.Clone(s.g.dag.Parents(old.ID))
		if _, err := s.g.dag.RedirectEdges(old.ID, replacement.ID); err != nil {
			continue
		}
		for _, pid := range parents {
			p, ok := s.g.byID[pid]
			if !ok {
				continue
			}
			if p.Requirements != nil {
				p.Requirements.ApplyOverride(req.Name(), req.Context, replacement.Ref.WithoutRevision(), by.Label())
			}
			for _, e := range s.g.dag.EdgesFrom(pid) {
				if e.To != replacement.ID {
					continue
				}
				if r, ok := e.Meta[metaRequirement].(requirement.Requirement); ok && !sameRef(r.Ref, replacement.Ref) {
					e.Meta[metaRequirement] = r.Resolve(replacement.Ref.WithoutRevision())
				}
			}
			s.warn(WarnOverride, p, fmt.Sprintf("%s requirement on %s redirected from %s to %s by %s",
				p.Label(), req.Name(), old.Label(), replacement.Label(), by.Label()))
		}
		s.drop(old)
	}
	s.prune()
}

// prune drops every node no longer reachable from the root.
func (s *build) prune() {
	root := s.g.root
	reach := map[string]bool{root.ID: true}
	for _, id := range s.g.dag.Descendants(root.ID) {
		reach[id] = true
	}
	for _, n := range s.g.Nodes() {
		if !reach[n.ID] {
			s.drop(n)
		}
	}
	for k, cl := range s.claims {
		if len(cl.nodes) == 0 && !cl.forced {
			delete(s.claims, k)
		}
	}
}

func (s *build) drop(n *Node) {
	if n.dropped {
		return
	}
	n.dropped = true
	s.g.remove(n)
	if s.byKey[n.key] == n {
		delete(s.byKey, n.key)
	}
	for _, cl := range s.claims {
		cl.nodes = slices.DeleteFunc(cl.nodes, func(o *Node) bool { return o == n })
	}
}

func (s *build) add(n *Node) error {
	base := n.String()
	id := base
	for i := 2; s.used[id]; i++ {
		id = fmt.Sprintf("%s [%d]", base, i)
	}
	n.ID = id
	s.used[id] = true
	s.byKey[n.key] = n
	if err := s.g.add(n); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "add node %s", id)
	}
	return nil
}

func (s *build) warn(kind WarningKind, n *Node, msg string) {
	w := Warning{Kind: kind, Node: n.Label(), Message: msg}
	if !slices.Contains(s.g.Warnings, w) {
		s.g.Warnings = append(s.g.Warnings, w)
	}
}

// finalize validates the graph and freezes every node.
func (s *build) finalize() (*DepsGraph, error) {
	g := s.g
	if err := g.dag.Validate(); err != nil {
		if cycle := g.dag.FindCycle(); cycle != nil {
			return nil, errors.New(errors.ErrCodeGraphLoop, "loop detected: %s", joinPath(cycle)).WithRefs(cycle...)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "invalid graph")
	}

	seen := make(map[string]string, len(g.nodes))
	for _, n := range g.nodes {
		if other, dup := seen[n.key]; dup {
			return nil, errors.New(errors.ErrCodeInternal, "nodes %s and %s share an identity", other, n.ID)
		}
		seen[n.key] = n.ID
		if err := checkConsistent(g, n); err != nil {
			return nil, err
		}
	}

	for _, n := range g.nodes {
		n.State = Finalized
	}
	for _, w := range g.Warnings {
		s.logger.Warn(w.Message, "kind", w.Kind, "ref", w.Node)
	}
	return g, nil
}

// checkConsistent verifies that the outgoing edges of n match its
// requirement set.
func checkConsistent(g *DepsGraph, n *Node) error {
	for _, e := range g.EdgesFrom(n) {
		want, ok := n.Requirements.Get(e.To.Ref.Name, e.To.Context)
		if !ok || !sameRef(want.Ref, e.To.Ref) {
			return errors.New(errors.ErrCodeInternal, "edge %s -> %s does not match the requirements of %s", n.ID, e.To.ID, n.ID)
		}
	}
	return nil
}

func sameRef(a, b ref.Reference) bool {
	return a.WithoutRevision().Equal(b.WithoutRevision())
}

func childScope(n *Node, req requirement.Requirement) string {
	if req.Visible {
		return n.scope
	}
	return "private:" + n.ID
}

func claimKey(scope, name string, ctx requirement.Context) string {
	return scope + "|" + name + "|" + string(ctx)
}

func firstRequirer(n *Node) string {
	if len(n.Path) == 0 {
		return ConsumerID
	}
	return n.Path[len(n.Path)-1]
}

func joinPath(p []string) string { return strings.Join(p, " -> ") }

// withPath attaches the requirer chain to err when it carries none.
func withPath(err error, path []string) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		return e.WithPath(path)
	}
	return err
}

func recipeError(n *Node, hook string, err error) error {
	return errors.Wrap(errors.ErrCodeRecipe, err, "%s: %s failed", n.Label(), hook).
		WithRefs(n.Label()).WithPath(n.Path)
}
