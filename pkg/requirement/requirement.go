// Package requirement models declared requirements and the per-node
// requirement set.
//
// A [Requirement] names a dependency by concrete reference or by version
// range, and carries the traits that decide how it takes part in the graph:
// its context (host or build), its kind, whether it is visible to consumers
// further up, and whether it overrides conflicting requirements.
//
// A [Set] holds the requirements one node declared, aggregated per name and
// context, together with every requirement seen and every override applied.
package requirement

import (
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/values"
	"github.com/matzehuels/stackforge/pkg/version"
)

// Context is the graph context a dependency lives in.
type Context string

const (
	Host  Context = "host"
	Build Context = "build"
)

// Kind is the kind of requirement declaration.
type Kind string

const (
	Require     Kind = "require"
	ToolRequire Kind = "tool_require"
	TestRequire Kind = "test_require"
)

// Requirement is one declared dependency.
type Requirement struct {
	// Ref is the requested reference. For a range requirement only the name,
	// user and channel are set until the range is resolved.
	Ref   ref.Reference
	Range *version.Range

	Context Context
	Kind    Kind

	Visible  bool
	Direct   bool
	Override bool
	Force    bool

	Headers bool
	Libs    bool
	Run     bool

	// Options imposed on the dependency. Assignments without a pattern
	// target the dependency itself.
	Options []values.Assignment
}

// Option configures a Requirement.
type Option func(*Requirement)

// WithBuildContext places the dependency in the build context.
func WithBuildContext() Option {
	return func(r *Requirement) { r.Context = Build }
}

// AsTool marks a tool requirement: build context, not visible, run-time only.
func AsTool() Option {
	return func(r *Requirement) {
		r.Kind = ToolRequire
		r.Context = Build
		r.Visible = false
		r.Headers, r.Libs, r.Run = false, false, true
	}
}

// AsTest marks a test requirement, which is not visible to consumers.
func AsTest() Option {
	return func(r *Requirement) {
		r.Kind = TestRequire
		r.Visible = false
	}
}

// Private hides the dependency from consumers further up the graph.
func Private() Option {
	return func(r *Requirement) { r.Visible = false }
}

// AsOverride makes the requirement replace conflicting references for the
// same name downstream without adding a dependency of its own.
func AsOverride() Option {
	return func(r *Requirement) { r.Override = true }
}

// Forced declares a dependency whose reference wins every conflict below.
func Forced() Option {
	return func(r *Requirement) { r.Force = true }
}

// Transitive marks a requirement that was not declared by the node itself.
func Transitive() Option {
	return func(r *Requirement) { r.Direct = false }
}

// WithOptions imposes option assignments on the dependency.
func WithOptions(as ...values.Assignment) Option {
	return func(r *Requirement) { r.Options = append(r.Options, as...) }
}

func defaults(r ref.Reference) Requirement {
	return Requirement{
		Ref:     r,
		Context: Host,
		Kind:    Require,
		Visible: true,
		Direct:  true,
		Headers: true,
		Libs:    true,
	}
}

// New creates a requirement on a concrete reference.
func New(r ref.Reference, opts ...Option) Requirement {
	req := defaults(r)
	for _, o := range opts {
		o(&req)
	}
	return req
}

// NewRange creates a requirement on a version range.
func NewRange(name string, rng version.Range, opts ...Option) Requirement {
	req := defaults(ref.Reference{Name: name})
	req.Range = &rng
	for _, o := range opts {
		o(&req)
	}
	return req
}

// Parse parses "name/version[@user/channel][#rev]" or
// "name/[range][@user/channel]".
func Parse(s string, opts ...Option) (Requirement, error) {
	s = strings.TrimSpace(s)
	name, rest, ok := strings.Cut(s, "/")
	if !ok || !strings.HasPrefix(rest, "[") {
		r, err := ref.Parse(s)
		if err != nil {
			return Requirement{}, err
		}
		return New(r, opts...), nil
	}

	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return Requirement{}, errors.New(errors.ErrCodeInvalidRange, "unterminated version range in %q", s)
	}
	rng, err := version.ParseRange(rest[:end+1])
	if err != nil {
		return Requirement{}, err
	}
	// Parse the remainder with a placeholder version to validate name,
	// user and channel.
	r, err := ref.Parse(name + "/0" + rest[end+1:])
	if err != nil {
		return Requirement{}, err
	}
	if r.Revision != "" {
		return Requirement{}, errors.New(errors.ErrCodeInvalidReference, "%q: a version range cannot pin a revision", s)
	}
	r.Version = version.Version{}
	req := defaults(r)
	req.Range = &rng
	for _, o := range opts {
		o(&req)
	}
	return req, nil
}

// MustParse is like [Parse] but panics on error.
func MustParse(s string, opts ...Option) Requirement {
	r, err := Parse(s, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the required package name.
func (r Requirement) Name() string { return r.Ref.Name }

// Key identifies the requirement within a Set: name and context.
func (r Requirement) Key() string { return r.Ref.Name + "/" + string(r.Context) }

// IsRange reports whether the requirement was declared with a range.
func (r Requirement) IsRange() bool { return r.Range != nil }

// Resolved reports whether Ref carries a concrete version.
func (r Requirement) Resolved() bool { return !r.Ref.Version.IsZero() }

// OverrideOnly reports whether the requirement only overrides and adds no
// dependency of its own.
func (r Requirement) OverrideOnly() bool { return r.Override && !r.Force }

// Resolve returns a copy pinned to a concrete reference. The declared range
// is kept for diagnostics.
func (r Requirement) Resolve(to ref.Reference) Requirement {
	r.Ref = to
	return r
}

// Declared returns the requirement as written: the range if there is one,
// otherwise the reference.
func (r Requirement) Declared() string {
	if r.Range == nil {
		return r.Ref.Repr()
	}
	s := r.Ref.Name + "/" + r.Range.String()
	if r.Ref.User != "" || r.Ref.Channel != "" {
		s += "@" + r.Ref.User
		if r.Ref.Channel != "" {
			s += "/" + r.Ref.Channel
		}
	}
	return s
}

// String returns the resolved reference, or the declaration if unresolved.
func (r Requirement) String() string {
	if r.Resolved() {
		return r.Ref.Repr()
	}
	return r.Declared()
}

// merge folds the traits of o into r for two requirements on the same
// reference.
func (r Requirement) merge(o Requirement) Requirement {
	r.Visible = r.Visible || o.Visible
	r.Headers = r.Headers || o.Headers
	r.Libs = r.Libs || o.Libs
	r.Run = r.Run || o.Run
	r.Force = r.Force || o.Force
	r.Options = append(append([]values.Assignment(nil), r.Options...), o.Options...)
	return r
}
