package requirement

import (
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
)

// Override records a replaced reference.
type Override struct {
	Original    ref.Reference
	Replacement ref.Reference
	By          string // reference of the node that imposed the override
}

// Set is the ordered requirement set of one node.
type Set struct {
	order     []string
	winners   map[string]Requirement
	history   []Requirement
	overrides []Override
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{winners: make(map[string]Requirement)}
}

// Add adds a resolved requirement in declaration order.
//
// Requirements on the same name and context are aggregated. An override or
// forced requirement replaces the current winner's reference and the change
// is logged; a plain requirement adopts a pending override. Two plain
// requirements on different references fail with VERSION_CONFLICT.
func (s *Set) Add(req Requirement, by string) error {
	if !req.Resolved() {
		return errors.New(errors.ErrCodeInternal, "requirement %s added before its range was resolved", req.Declared())
	}
	s.history = append(s.history, req)

	key := req.Key()
	cur, ok := s.winners[key]
	if !ok {
		s.order = append(s.order, key)
		s.winners[key] = req
		return nil
	}

	switch {
	case cur.Ref.Equal(req.Ref):
		merged := cur.merge(req)
		merged.Override = cur.Override && req.Override
		s.winners[key] = merged
	case req.Override || req.Force:
		s.logOverride(cur.Ref, req.Ref, by)
		if cur.OverrideOnly() && !req.OverrideOnly() {
			// The new requirement overrides a pending override: it wins,
			// but as a real dependency.
			s.winners[key] = req
			break
		}
		next := cur
		next.Ref = req.Ref
		next.Force = cur.Force || req.Force
		s.winners[key] = next
	case cur.Override || cur.Force:
		s.logOverride(req.Ref, cur.Ref, by)
		if cur.OverrideOnly() {
			adopted := req.Resolve(cur.Ref)
			s.winners[key] = adopted
		}
	default:
		return errors.New(errors.ErrCodeVersionConflict,
			"%s requires both %s and %s; add an override to choose one", by, cur.Ref.Repr(), req.Ref.Repr()).
			WithRefs(cur.Ref.Repr(), req.Ref.Repr())
	}
	return nil
}

func (s *Set) logOverride(from, to ref.Reference, by string) {
	s.overrides = append(s.overrides, Override{Original: from, Replacement: to, By: by})
}

// ApplyOverride redirects the winner for name in context ctx to replacement.
// It reports whether a requirement was changed.
func (s *Set) ApplyOverride(name string, ctx Context, replacement ref.Reference, by string) bool {
	key := name + "/" + string(ctx)
	cur, ok := s.winners[key]
	if !ok || cur.Ref.Equal(replacement) {
		return false
	}
	s.logOverride(cur.Ref, replacement, by)
	cur.Ref = replacement
	s.winners[key] = cur
	return true
}

// Get returns the winning requirement for name in context ctx.
func (s *Set) Get(name string, ctx Context) (Requirement, bool) {
	r, ok := s.winners[name+"/"+string(ctx)]
	return r, ok
}

// Requirements returns the winners that produce dependencies, in
// declaration order. Override-only entries are excluded.
func (s *Set) Requirements() []Requirement {
	out := make([]Requirement, 0, len(s.order))
	for _, k := range s.order {
		if r := s.winners[k]; !r.OverrideOnly() {
			out = append(out, r)
		}
	}
	return out
}

// Overriding returns the override and forced winners, in declaration order.
// These propagate to every node below.
func (s *Set) Overriding() []Requirement {
	var out []Requirement
	for _, k := range s.order {
		if r := s.winners[k]; r.Override || r.Force {
			out = append(out, r)
		}
	}
	return out
}

// History returns every requirement added, in order.
func (s *Set) History() []Requirement {
	return append([]Requirement(nil), s.history...)
}

// Overrides returns the override log.
func (s *Set) Overrides() []Override {
	return append([]Override(nil), s.overrides...)
}

// Len returns the number of distinct name and context pairs.
func (s *Set) Len() int { return len(s.order) }
