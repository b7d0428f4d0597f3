// Package binaries decides, for every node of a finished graph, which binary
// it needs and where that binary comes from.
//
// Analysis runs in four steps:
//
//  1. Package IDs are computed bottom-up, so every dependency has its ID
//     before its consumers hash it.
//  2. The exact IDs are looked up on a bounded worker pool, in the local
//     store first and then on each remote in order.
//  3. Statuses are decided from the root down. A node whose binary no
//     consumer needs is skipped; it keeps its ID for listings. A needed node
//     without a binary tries the compatible alternatives of its recipe in
//     declared order, and the first one that exists is used.
//  4. The build policy decides what is built and what is missing. With
//     cascade, consumers of anything being built are rebuilt and the
//     decision is repeated until it is stable.
//
// A binary found through a compatible alternative stays stored under the
// alternative's ID only. Analyzing the same inputs again reports the same
// fallback; the requested ID is never claimed to exist.
//
// Store failures and missing binaries are attached to the node they concern
// and never stop the analysis of other nodes.
package binaries

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/store"
)

// DefaultParallel bounds concurrent store operations.
const DefaultParallel = 8

// Status is the decision taken for one node.
type Status string

const (
	StatusCache    Status = "Cache"    // binary in the local store
	StatusDownload Status = "Download" // binary on a remote
	StatusBuild    Status = "Build"    // built from source
	StatusMissing  Status = "Missing"  // no binary, and the policy forbids building
	StatusSkip     Status = "Skip"     // not needed
	StatusEditable Status = "Editable" // served from a local workspace
)

// Binary is the analysis of one node.
type Binary struct {
	Node   *graph.Node
	Info   *pkgid.Info
	Pref   ref.PackageReference // requested package
	Status Status
	// Remote names the store holding the binary.
	Remote string
	// Compatible is the alternative package used in place of Pref, when the
	// exact binary does not exist.
	Compatible *ref.PackageReference
	// Locked is the package ID a lock file recorded for the node when it
	// differs from the computed one.
	Locked string
	Err    error

	found      bool   // exact binary exists
	where      string // store name of the exact binary
	lookupErrs []error
}

// FoundViaFallback reports whether a compatible alternative was used.
func (b *Binary) FoundViaFallback() bool { return b.Compatible != nil }

// Effective returns the package actually used: the compatible alternative if
// there is one, otherwise the requested package.
func (b *Binary) Effective() ref.PackageReference {
	if b.Compatible != nil {
		return *b.Compatible
	}
	return b.Pref
}

// Describe returns the status as shown to users.
func (b *Binary) Describe() string {
	if b.FoundViaFallback() {
		return fmt.Sprintf("%s (found-via-fallback %s)", b.Status, b.Compatible.PackageID)
	}
	return string(b.Status)
}

// Result is the analysis of a graph. Binaries are in bottom-up order.
type Result struct {
	Graph    *graph.DepsGraph
	Binaries []*Binary
	byNode   map[*graph.Node]*Binary
}

// Binary returns the analysis of n. Virtual nodes have none.
func (r *Result) Binary(n *graph.Node) (*Binary, bool) {
	b, ok := r.byNode[n]
	return b, ok
}

// Count returns the number of binaries with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, b := range r.Binaries {
		if b.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the binaries carrying an error.
func (r *Result) Failed() []*Binary {
	var out []*Binary
	for _, b := range r.Binaries {
		if b.Err != nil {
			out = append(out, b)
		}
	}
	return out
}

// Err summarizes the per-node errors, or returns nil when there are none.
func (r *Result) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	code := errors.GetCode(failed[0].Err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	refs := make([]string, len(failed))
	for i, b := range failed {
		refs[i] = b.Node.ID
	}
	return errors.Wrap(code, failed[0].Err, "%d package(s) failed", len(failed)).WithRefs(refs...)
}

// PackageLock holds the package IDs of a previous resolution.
type PackageLock interface {
	PackageID(r ref.Reference) (string, bool)
}

// Analyzer computes package IDs and binary statuses.
type Analyzer struct {
	Local   store.Store
	Remotes []store.Store
	Policy  BuildPolicy
	Modes   pkgid.DefaultModes
	// Editable lists patterns of packages served from a local workspace.
	Editable []string
	// Lock, when set, is compared with the computed package IDs. A
	// difference is logged, or fails the analysis with LOCK_MISMATCH when
	// StrictLock is set.
	Lock       PackageLock
	StrictLock bool
	// Parallel bounds concurrent store lookups.
	Parallel int
	Logger   *log.Logger
}

type analysis struct {
	*Analyzer
	ctx    context.Context
	res    *Result
	forced map[*Binary]bool
	alts   map[*Binary][]*pkgid.Info

	mu sync.Mutex
}

// Analyze analyzes g. Skip flags are written to the graph nodes. The returned
// error is non-nil only for invalid input or cancellation; per-node failures
// are in the result.
func (a *Analyzer) Analyze(ctx context.Context, g *graph.DepsGraph) (*Result, error) {
	s := &analysis{
		Analyzer: a.withDefaults(),
		ctx:      ctx,
		res:      &Result{Graph: g, byNode: make(map[*graph.Node]*Binary)},
		forced:   make(map[*Binary]bool),
		alts:     make(map[*Binary][]*pkgid.Info),
	}
	if err := s.computeIDs(); err != nil {
		return nil, err
	}
	if err := s.checkLock(); err != nil {
		return nil, err
	}
	if err := s.lookupExact(); err != nil {
		return nil, err
	}
	for {
		if err := s.decide(); err != nil {
			return nil, err
		}
		if !s.cascade() {
			break
		}
	}

	for _, b := range s.res.Binaries {
		b.Node.Skip = b.Status == StatusSkip
		observability.Resolve().OnBinaryStatus(ctx, b.Node.ID, string(b.Status))
		s.Logger.Debug("binary", "ref", b.Node.ID, "package", b.Pref.PackageID, "status", b.Describe())
	}
	return s.res, nil
}

func (a *Analyzer) withDefaults() *Analyzer {
	out := *a
	if out.Parallel <= 0 {
		out.Parallel = DefaultParallel
	}
	if out.Logger == nil {
		out.Logger = log.Default()
	}
	out.Modes = out.Modes.WithDefaults()
	return &out
}

// computeIDs fills Info and Pref bottom-up.
func (s *analysis) computeIDs() error {
	g := s.res.Graph
	for _, n := range g.BottomUp() {
		if n.Virtual {
			continue
		}
		var deps []pkgid.Dependency
		modes := n.Recipe.Modes()
		for _, dep := range s.dependencies(n) {
			db := s.res.byNode[dep.node]
			deps = append(deps, pkgid.Dependency{
				Pref:    db.Pref,
				Context: dep.req.Context,
				Kind:    dep.req.Kind,
				Mode:    modes[dep.node.Ref.Name],
			})
		}
		info, err := pkgid.Compute(n.Settings.Map(), n.Options.Map(), deps, s.Modes, n.Recipe.PackageID)
		if err != nil {
			return errors.Wrap(errors.ErrCodeRecipe, err, "%s: package id", n.ID).WithRefs(n.ID).WithPath(n.Path)
		}
		b := &Binary{Node: n, Info: info, Pref: ref.NewPackage(n.Ref, info.ID())}
		s.res.Binaries = append(s.res.Binaries, b)
		s.res.byNode[n] = b
	}
	return nil
}

// checkLock compares the computed package IDs with the locked ones.
func (s *analysis) checkLock() error {
	if s.Lock == nil {
		return nil
	}
	var refs []string
	for _, b := range s.res.Binaries {
		id, ok := s.Lock.PackageID(b.Node.Ref)
		if !ok || id == b.Pref.PackageID {
			continue
		}
		b.Locked = id
		refs = append(refs, b.Node.ID)
		s.Logger.Warn("package id differs from lock", "ref", b.Node.ID, "locked", id, "package", b.Pref.PackageID)
	}
	if len(refs) == 0 || !s.StrictLock {
		return nil
	}
	return errors.New(errors.ErrCodeLockMismatch,
		"package ids of %s differ from the lock file; options or settings changed since it was written", strings.Join(refs, ", ")).
		WithRefs(refs...)
}

type dependency struct {
	node *graph.Node
	req  requirement.Requirement
}

// dependencies returns the packages significant for the ID of n: its direct
// dependencies, then the host dependencies they make visible, transitively.
// A name is listed once per context, nearest first.
func (s *analysis) dependencies(n *graph.Node) []dependency {
	g := s.res.Graph
	var queue, out []dependency
	for _, e := range g.EdgesFrom(n) {
		queue = append(queue, dependency{e.To, e.Requirement})
	}
	seen := map[string]bool{}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		key := d.node.Ref.Name + "/" + string(d.req.Context)
		if seen[key] || d.node.Virtual {
			continue
		}
		seen[key] = true
		out = append(out, d)
		if d.req.Context != requirement.Host {
			continue
		}
		for _, e := range g.EdgesFrom(d.node) {
			if e.Requirement.Visible && e.Requirement.Context == requirement.Host {
				queue = append(queue, dependency{e.To, e.Requirement})
			}
		}
	}
	return out
}

// lookupExact checks every requested package on the bounded pool.
func (s *analysis) lookupExact() error {
	eg, ctx := errgroup.WithContext(s.ctx)
	eg.SetLimit(s.Parallel)
	for _, b := range s.res.Binaries {
		if s.editable(b) {
			continue
		}
		eg.Go(func() error {
			where, found, errs := s.exists(ctx, b.Pref)
			s.mu.Lock()
			b.where, b.found, b.lookupErrs = where, found, errs
			s.mu.Unlock()
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return s.ctx.Err()
}

// exists looks p up locally, then on each remote. Store failures are
// collected; the lookup goes on with the next store.
func (s *analysis) exists(ctx context.Context, p ref.PackageReference) (string, bool, []error) {
	var errs []error
	for _, st := range s.stores() {
		_, ok, err := st.ExistsPackage(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return "", false, nil
			}
			s.Logger.Warn("package lookup failed", "store", st.Name(), "ref", p.Ref.String(), "package", p.PackageID, "err", err)
			errs = append(errs, errors.Wrap(errors.ErrCodeNetwork, err, "%s: lookup on %s", p.Ref, st.Name()))
			continue
		}
		if ok {
			return st.Name(), true, nil
		}
	}
	return "", false, errs
}

func (s *analysis) stores() []store.Store {
	out := make([]store.Store, 0, 1+len(s.Remotes))
	if s.Local != nil {
		out = append(out, s.Local)
	}
	return append(out, s.Remotes...)
}

func (s *analysis) editable(b *Binary) bool {
	return matchAny(s.Editable, b.Node.Ref)
}

// decide assigns statuses from the root down. It is deterministic for a
// given set of forced builds.
func (s *analysis) decide() error {
	order := s.res.Graph.BottomUp()
	slices.Reverse(order)
	for _, n := range order {
		b, ok := s.res.byNode[n]
		if !ok {
			continue
		}
		b.Status, b.Remote, b.Compatible, b.Err = "", "", nil, nil
		switch {
		case !s.needed(n):
			b.Status = StatusSkip
		case s.editable(b):
			b.Status = StatusEditable
		case s.forced[b] || s.Policy.forced(n.Ref):
			b.Status = StatusBuild
		case b.found:
			b.Status, b.Remote = s.located(b.where), b.where
		default:
			if err := s.fallback(b); err != nil {
				return err
			}
			if b.Compatible == nil {
				s.missing(b)
			}
		}
	}
	return nil
}

// needed reports whether some consumer needs the binary of n. Host
// dependencies are needed by any needed consumer; build-context ones only by
// consumers being built.
func (s *analysis) needed(n *graph.Node) bool {
	g := s.res.Graph
	if n == g.Root() {
		return true
	}
	for _, p := range g.Dependants(n) {
		pb, ok := s.res.byNode[p]
		if !ok {
			// Virtual consumer.
			return true
		}
		if pb.Status == StatusSkip {
			continue
		}
		for _, e := range g.EdgesFrom(p) {
			if e.To != n {
				continue
			}
			if e.Requirement.Context == requirement.Host || pb.Status == StatusBuild || pb.Status == StatusEditable {
				return true
			}
		}
	}
	return false
}

func (s *analysis) located(where string) Status {
	if s.Local != nil && where == s.Local.Name() {
		return StatusCache
	}
	return StatusDownload
}

// fallback probes the compatible alternatives of b in declared order.
func (s *analysis) fallback(b *Binary) error {
	alts, ok := s.alts[b]
	if !ok {
		alts = pkgid.Compatibles(b.Info, b.Node.Recipe.Compatibility(b.Info.Clone()))
		s.alts[b] = alts
	}
	for _, alt := range alts {
		p := ref.NewPackage(b.Node.Ref, alt.ID())
		where, found, errs := s.exists(s.ctx, p)
		if err := s.ctx.Err(); err != nil {
			return err
		}
		b.lookupErrs = append(b.lookupErrs, errs...)
		if found {
			b.Compatible = &p
			b.Status, b.Remote = s.located(where), where
			s.Logger.Info("using compatible binary", "ref", b.Node.ID, "requested", b.Pref.PackageID, "package", p.PackageID, "store", where)
			return nil
		}
	}
	return nil
}

func (s *analysis) missing(b *Binary) {
	if s.Policy.buildMissing(b.Node.Ref) {
		b.Status = StatusBuild
		return
	}
	b.Status = StatusMissing
	err := errors.New(errors.ErrCodeMissingBinary,
		"missing binary %s:%s; build it with --build=missing:%s", b.Node.Ref, b.Pref.PackageID, b.Node.Ref.Name).
		WithRefs(b.Node.ID).WithPath(b.Node.Path)
	if len(b.lookupErrs) > 0 {
		err.Cause = b.lookupErrs[0]
	}
	b.Err = err
}

// cascade marks consumers of packages being built. It reports whether
// anything changed.
func (s *analysis) cascade() bool {
	if !s.Policy.Cascade {
		return false
	}
	changed := false
	for _, b := range s.res.Binaries {
		if s.forced[b] || (b.Status != StatusCache && b.Status != StatusDownload) || s.Policy.excluded(b.Node.Ref) {
			continue
		}
		for _, dep := range s.res.Graph.Dependencies(b.Node) {
			if db, ok := s.res.byNode[dep]; ok && db.Status == StatusBuild {
				s.forced[b] = true
				changed = true
				break
			}
		}
	}
	return changed
}
