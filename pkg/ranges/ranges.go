// Package ranges resolves version ranges to concrete references.
//
// Candidates come from a local [Source] first. Remotes are consulted in
// parallel when nothing local satisfies the ranges or when an update is
// requested. All ranges declared for the same package are intersected and
// the highest version satisfying every one of them wins. There is no
// backtracking: a choice once made is final for the resolution.
package ranges

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/version"
)

// DefaultRemoteTimeout bounds one remote version listing.
const DefaultRemoteTimeout = 15 * time.Second

// Source lists the available versions of a package.
type Source interface {
	Name() string
	Versions(ctx context.Context, name string) ([]ref.Reference, error)
}

// Lock pins resolved references. Resolve reports ok=false for names it does
// not hold; a strict lock returns a LOCK_MISMATCH error instead.
type Lock interface {
	Resolve(name string, ctx requirement.Context, rng version.Range) (r ref.Reference, ok bool, err error)
	Record(r ref.Reference, ctx requirement.Context)
}

// Constraint is one range declared for a package, with its requirer.
type Constraint struct {
	Range   version.Range
	User    string
	Channel string
	By      string
}

// ConstraintOf extracts the constraint of a range requirement.
func ConstraintOf(req requirement.Requirement, by string) Constraint {
	c := Constraint{User: req.Ref.User, Channel: req.Ref.Channel, By: by}
	if req.Range != nil {
		c.Range = *req.Range
	}
	return c
}

func (c Constraint) String() string {
	s := c.Range.String()
	if c.User != "" {
		s += "@" + c.User + "/" + c.Channel
	}
	if c.By != "" {
		s += " (required by " + c.By + ")"
	}
	return s
}

func (c Constraint) admits(r ref.Reference) bool {
	return r.User == c.User && r.Channel == c.Channel && c.Range.Contains(r.Version)
}

// Options configures a [Resolver].
type Options struct {
	Update        bool          // consult remotes even when a local version fits
	RemoteTimeout time.Duration // per remote listing (default: 15s)
	Lock          Lock
	Logger        *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = DefaultRemoteTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Resolver resolves ranges. Results are memoized, so a Resolver is meant
// to serve a single resolution.
type Resolver struct {
	local   Source
	remotes []Source
	opts    Options

	mu   sync.Mutex
	memo map[string]ref.Reference
}

// NewResolver creates a resolver. local may be nil.
func NewResolver(local Source, remotes []Source, opts Options) *Resolver {
	return &Resolver{
		local:   local,
		remotes: remotes,
		opts:    opts.WithDefaults(),
		memo:    make(map[string]ref.Reference),
	}
}

func memoKey(name string, rctx requirement.Context, cs []Constraint) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.Range.String() + "@" + c.User + "/" + c.Channel
	}
	slices.Sort(parts)
	return name + "|" + string(rctx) + "|" + strings.Join(slices.Compact(parts), ",")
}

// Resolve returns the highest reference named name that satisfies every
// constraint. It fails with RANGE_CONFLICT when each constraint alone can
// be satisfied but not all together, and with NOT_FOUND when no candidate
// matches at all.
func (r *Resolver) Resolve(ctx context.Context, name string, rctx requirement.Context, cs []Constraint) (ref.Reference, error) {
	if len(cs) == 0 {
		return ref.Reference{}, errors.New(errors.ErrCodeInvalidRange, "no version range given for %s", name)
	}
	key := memoKey(name, rctx, cs)
	r.mu.Lock()
	got, ok := r.memo[key]
	r.mu.Unlock()
	if ok {
		return got, nil
	}

	got, source, err := r.resolve(ctx, name, rctx, cs)
	observability.Resolve().OnRangeResolved(ctx, name, source, err)
	if err != nil {
		return ref.Reference{}, err
	}
	r.opts.Logger.Debug("range resolved", "name", name, "ranges", len(cs), "ref", got.Repr(), "source", source)

	r.mu.Lock()
	r.memo[key] = got
	r.mu.Unlock()
	return got, nil
}

func (r *Resolver) resolve(ctx context.Context, name string, rctx requirement.Context, cs []Constraint) (ref.Reference, string, error) {
	if lock := r.opts.Lock; lock != nil {
		for _, c := range cs {
			pinned, ok, err := lock.Resolve(name, rctx, c.Range)
			if err != nil {
				return ref.Reference{}, "lock", err
			}
			if ok {
				return pinned, "lock", nil
			}
		}
	}

	var local []ref.Reference
	if r.local != nil {
		var err error
		if local, err = r.local.Versions(ctx, name); err != nil {
			return ref.Reference{}, r.local.Name(), fmt.Errorf("list %s in %s: %w", name, r.local.Name(), err)
		}
		if best, ok := pick(local, cs); ok && !r.opts.Update {
			r.record(best, rctx)
			return best, r.local.Name(), nil
		}
	}

	remote, err := r.queryRemotes(ctx, name)
	if err != nil && len(local) == 0 {
		return ref.Reference{}, "remote", err
	}
	candidates := slices.Concat(local, remote)
	if best, ok := pick(candidates, cs); ok {
		r.record(best, rctx)
		return best, "remote", nil
	}
	return ref.Reference{}, "", unsatisfiable(name, candidates, cs)
}

func (r *Resolver) record(got ref.Reference, rctx requirement.Context) {
	if r.opts.Lock != nil {
		r.opts.Lock.Record(got, rctx)
	}
}

// queryRemotes lists name on every remote in parallel. Individual failures
// are logged; an error is returned only when every remote failed.
func (r *Resolver) queryRemotes(ctx context.Context, name string) ([]ref.Reference, error) {
	if len(r.remotes) == 0 {
		return nil, nil
	}
	results := make([][]ref.Reference, len(r.remotes))
	errs := make([]error, len(r.remotes))

	var g errgroup.Group
	for i, src := range r.remotes {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, r.opts.RemoteTimeout)
			defer cancel()
			results[i], errs[i] = src.Versions(rctx, name)
			if errs[i] != nil {
				r.opts.Logger.Warn("remote listing failed", "remote", src.Name(), "name", name, "err", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []ref.Reference
	failed := 0
	for i := range r.remotes {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, results[i]...)
	}
	if failed == len(r.remotes) {
		return nil, errors.Wrap(errors.ErrCodeNetwork, errs[0], "no remote could list %s", name)
	}
	return out, nil
}

// pick returns the candidate with the highest version admitted by every
// constraint. Among equal versions the earliest candidate wins, so local
// references are preferred over remote ones.
func pick(candidates []ref.Reference, cs []Constraint) (ref.Reference, bool) {
	var admitted []ref.Reference
	for _, cand := range candidates {
		if admitsAll(cs, cand) {
			admitted = append(admitted, cand)
		}
	}
	if len(admitted) == 0 {
		return ref.Reference{}, false
	}
	versions := make([]version.Version, len(admitted))
	for i, a := range admitted {
		versions[i] = a.Version
	}
	ranges := make([]version.Range, len(cs))
	for i, c := range cs {
		ranges[i] = c.Range
	}
	best, ok := version.Best(versions, ranges...)
	if !ok {
		return ref.Reference{}, false
	}
	for _, a := range admitted {
		if a.Version.Equal(best) {
			return a, true
		}
	}
	return ref.Reference{}, false
}

func admitsAll(cs []Constraint, cand ref.Reference) bool {
	for _, c := range cs {
		if !c.admits(cand) {
			return false
		}
	}
	return true
}

func unsatisfiable(name string, candidates []ref.Reference, cs []Constraint) error {
	each := len(candidates) > 0
	for _, c := range cs {
		if _, ok := pick(candidates, []Constraint{c}); !ok {
			each = false
			break
		}
	}
	descs := make([]string, len(cs))
	for i, c := range cs {
		descs[i] = name + "/" + c.String()
	}
	if each && len(cs) > 1 {
		return errors.New(errors.ErrCodeRangeConflict,
			"version ranges for %s have no common version:\n  %s", name, strings.Join(descs, "\n  ")).WithRefs(descs...)
	}
	return errors.New(errors.ErrCodeNotFound, "no version of %s matches %s", name, strings.Join(descs, ", ")).WithRefs(descs...)
}
