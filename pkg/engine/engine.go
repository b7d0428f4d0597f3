// Package engine runs the resolve → analyze → install pipeline shared by
// the CLI commands.
//
// An [Engine] holds the long-lived collaborators of a process: the recipe
// evaluator, the local store, the remotes and the listing cache. Every
// call takes its own [Options], so one Engine serves any number of
// resolutions.
//
//	eng := engine.New(evaluator, local, remotes, cache, logger)
//	res, err := eng.Install(ctx, graph.FromRef(ref.MustParse("app/1.0")), engine.Options{
//	    Profile: prof,
//	    Policy:  policy,
//	})
package engine

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackforge/pkg/binaries"
	"github.com/matzehuels/stackforge/pkg/cache"
	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/lockfile"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/profile"
	"github.com/matzehuels/stackforge/pkg/ranges"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/store"
	"github.com/matzehuels/stackforge/pkg/values"
)

// Engine wires resolution, binary analysis and installation.
type Engine struct {
	Evaluator recipe.Evaluator
	// Listings are local version sources consulted before the local store.
	// Nil uses the evaluator when it can list versions.
	Listings []ranges.Source
	Local    store.Store
	Remotes  []store.Store
	Cache    cache.Cache
	Keyer    cache.Keyer
	// Settings validates node settings. Nil means the built-in definition.
	Settings *values.SettingsDefinition
	Logger   *log.Logger
}

// New creates an engine. A nil cache disables caching; a nil logger uses
// log.Default().
func New(ev recipe.Evaluator, local store.Store, remotes []store.Store, c cache.Cache, logger *log.Logger) *Engine {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		Evaluator: ev,
		Local:     local,
		Remotes:   remotes,
		Cache:     c,
		Keyer:     cache.NewDefaultKeyer(),
		Logger:    logger,
	}
}

// Options configures one run.
type Options struct {
	Profile *profile.Profile
	Policy  binaries.BuildPolicy
	// Lock pins ranges and records new resolutions. Nil resolves freely.
	Lock *lockfile.Lockfile
	// Update consults remotes even when a local version satisfies a range,
	// bypassing cached listings.
	Update   bool
	Parallel int
	Modes    pkgid.DefaultModes
	Editable []string
	// RemoteTimeout bounds each remote version listing.
	RemoteTimeout time.Duration
}

// WithDefaults returns a copy of Options with zero values replaced by
// defaults.
func (o Options) WithDefaults() Options {
	if o.Parallel <= 0 {
		o.Parallel = binaries.DefaultParallel
	}
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = ranges.DefaultRemoteTimeout
	}
	o.Modes = o.Modes.WithDefaults()
	return o
}

// Stats records the size and timing of a run.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	ResolveTime time.Duration
	AnalyzeTime time.Duration
	InstallTime time.Duration
}

// Result is the outcome of [Engine.Install].
type Result struct {
	Graph    *graph.DepsGraph
	Binaries *binaries.Result
	Stats    Stats
}

// Resolve builds the dependency graph of root.
func (e *Engine) Resolve(ctx context.Context, root graph.Root, opts Options) (*graph.DepsGraph, error) {
	opts = opts.WithDefaults()
	start := time.Now()
	b := &graph.Builder{
		Evaluator: e.Evaluator,
		Ranges:    e.resolver(opts),
		Settings:  e.Settings,
		Logger:    e.Logger,
	}
	g, err := b.Build(ctx, root, opts.Profile)
	if err != nil {
		return nil, err
	}
	for _, w := range g.Warnings {
		e.Logger.Warn(w.Message, "ref", w.Node, "kind", w.Kind)
	}
	e.Logger.Info("resolved graph",
		"root", root.String(),
		"nodes", g.Len(),
		"edges", len(g.Edges()),
		"duration", time.Since(start).Round(time.Millisecond))
	return g, nil
}

// resolver creates the range resolver of one run. Local listings come from
// the listings, then from the local store.
func (e *Engine) resolver(opts Options) *ranges.Resolver {
	local := ranges.MultiSource(slices.Clone(e.Listings))
	if e.Listings == nil {
		if src, ok := e.Evaluator.(ranges.Source); ok {
			local = append(local, src)
		}
	}
	if e.Local != nil {
		local = append(local, ranges.NewStoreSource(e.Local))
	}
	remotes := make([]ranges.Source, len(e.Remotes))
	for i, r := range e.Remotes {
		var src ranges.Source = ranges.NewStoreSource(r)
		if !opts.Update {
			src = ranges.NewCachedSource(src, e.Cache, e.Keyer, 0)
		}
		remotes[i] = src
	}

	var lock ranges.Lock
	if opts.Lock != nil {
		lock = opts.Lock
	}
	var src ranges.Source
	if len(local) > 0 {
		src = local
	}
	return ranges.NewResolver(src, remotes, ranges.Options{
		Update:        opts.Update,
		RemoteTimeout: opts.RemoteTimeout,
		Lock:          lock,
		Logger:        e.Logger,
	})
}

// Analyze computes package IDs and binary statuses for g.
func (e *Engine) Analyze(ctx context.Context, g *graph.DepsGraph, opts Options) (*binaries.Result, error) {
	opts = opts.WithDefaults()
	start := time.Now()
	a := &binaries.Analyzer{
		Local:    e.Local,
		Remotes:  e.cachedRemotes(),
		Policy:   opts.Policy,
		Modes:    opts.Modes,
		Editable: opts.Editable,
		Parallel: opts.Parallel,
		Logger:   e.Logger,
	}
	if opts.Lock != nil {
		a.Lock, a.StrictLock = opts.Lock, opts.Lock.Strict
	}
	res, err := a.Analyze(ctx, g)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("analyzed binaries",
		"cache", res.Count(binaries.StatusCache),
		"download", res.Count(binaries.StatusDownload),
		"build", res.Count(binaries.StatusBuild),
		"missing", res.Count(binaries.StatusMissing),
		"skip", res.Count(binaries.StatusSkip),
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (e *Engine) cachedRemotes() []store.Store {
	out := make([]store.Store, len(e.Remotes))
	for i, r := range e.Remotes {
		out[i] = store.NewCachedStore(r, e.Cache, e.Keyer, 0)
	}
	return out
}

// Install resolves root, analyzes its binaries and downloads the ones found
// on remotes. The result is returned together with the error whenever the
// graph could be built, so callers can report per-node statuses. The lock,
// when set, receives the resolved references and package IDs of a
// successful run.
func (e *Engine) Install(ctx context.Context, root graph.Root, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	res := &Result{}

	start := time.Now()
	g, err := e.Resolve(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	res.Graph = g
	res.Stats.ResolveTime = time.Since(start)
	res.Stats.NodeCount = g.Len()
	res.Stats.EdgeCount = len(g.Edges())

	start = time.Now()
	bins, err := e.Analyze(ctx, g, opts)
	if err != nil {
		return res, err
	}
	res.Binaries = bins
	res.Stats.AnalyzeTime = time.Since(start)

	start = time.Now()
	inst := &binaries.Installer{
		Local:    e.Local,
		Remotes:  e.Remotes,
		Parallel: opts.Parallel,
		Logger:   e.Logger,
	}
	err = inst.Install(ctx, bins)
	res.Stats.InstallTime = time.Since(start)
	if err != nil {
		return res, err
	}

	if opts.Lock != nil {
		lockGraph(opts.Lock, res)
	}
	e.Logger.Info("installed",
		"downloaded", bins.Count(binaries.StatusDownload),
		"duration", res.Stats.InstallTime.Round(time.Millisecond))
	return res, nil
}

// Lock resolves root and merges the result into l, creating a new lock
// when l is nil.
func (e *Engine) Lock(ctx context.Context, root graph.Root, l *lockfile.Lockfile, opts Options) (*lockfile.Lockfile, *graph.DepsGraph, error) {
	if l == nil {
		l = lockfile.New()
	}
	opts.Lock = l
	g, err := e.Resolve(ctx, root, opts)
	if err != nil {
		return nil, nil, err
	}
	l.Add(g)
	return l, g, nil
}

func lockGraph(l *lockfile.Lockfile, res *Result) {
	l.Add(res.Graph)
	for _, b := range res.Binaries.Binaries {
		if b.Status == binaries.StatusSkip || b.Node.Virtual {
			continue
		}
		l.AddPackage(b.Node.Ref, b.Pref.PackageID)
	}
}
