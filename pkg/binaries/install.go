package binaries

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/store"
)

// Installer copies the binaries an analysis located on remotes into the
// local store.
type Installer struct {
	Local    store.Store
	Remotes  []store.Store
	Parallel int
	Logger   *log.Logger
}

// Install downloads every Download binary of res on a bounded pool. A failed
// download marks its node and every node depending on it; other nodes are
// unaffected. Nodes to build are reported, not built. The returned error
// summarizes the failures, or is the context error on cancellation.
func (i *Installer) Install(ctx context.Context, res *Result) error {
	parallel := i.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	logger := i.Logger
	if logger == nil {
		logger = log.Default()
	}

	var mu sync.Mutex
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for _, b := range res.Binaries {
		l := logger.With("ref", b.Node.ID)
		switch b.Status {
		case StatusDownload:
		case StatusBuild:
			l.Info("requires build", "package", b.Pref.PackageID)
			continue
		case StatusMissing:
			l.Error("missing binary", "package", b.Pref.PackageID)
			continue
		default:
			l.Debug(string(b.Status), "package", b.Effective().PackageID)
			continue
		}
		eg.Go(func() error {
			err := i.download(gctx, b, l)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				l.Error("download failed", "package", b.Effective().PackageID, "remote", b.Remote, "err", err)
				mu.Lock()
				b.Err = err
				mu.Unlock()
				return nil
			}
			l.Info("downloaded", "package", b.Effective().PackageID, "remote", b.Remote)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	propagate(res, logger)
	return res.Err()
}

func (i *Installer) remote(name string) store.Store {
	for _, r := range i.Remotes {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

// download copies the effective package of b into the local store. A write
// interrupted by cancellation is removed again.
func (i *Installer) download(ctx context.Context, b *Binary, l *log.Logger) error {
	src := i.remote(b.Remote)
	if src == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "remote %q is not configured", b.Remote).WithRefs(b.Node.ID)
	}
	p := b.Effective()
	data, got, err := src.FetchPackage(ctx, p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s:%s from %s", p.Ref, p.PackageID, src.Name()).WithRefs(b.Node.ID)
	}
	if _, err := i.Local.PutPackage(ctx, got, data); err != nil || ctx.Err() != nil {
		if rmErr := i.Local.RemovePackage(context.WithoutCancel(ctx), got); rmErr != nil {
			l.Warn("could not remove partial package", "err", rmErr)
		}
		if err == nil {
			err = ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "store %s:%s", p.Ref, p.PackageID).WithRefs(b.Node.ID)
	}
	return nil
}

// propagate marks the dependants of failed nodes.
func propagate(res *Result, logger *log.Logger) {
	dag := res.Graph.DAG()
	for _, b := range res.Failed() {
		if b.Status != StatusDownload {
			continue
		}
		for _, id := range dag.Ancestors(b.Node.ID) {
			n, ok := res.Graph.Node(id)
			if !ok {
				continue
			}
			ab, ok := res.Binary(n)
			if !ok || ab.Err != nil || ab.Status == StatusSkip {
				continue
			}
			ab.Err = errors.New(errors.ErrCodeMissingBinary, "dependency %s failed to install", b.Node.ID).
				WithRefs(n.ID, b.Node.ID).WithPath(n.Path)
			logger.With("ref", n.ID).Error("dependency failed", "dependency", b.Node.ID)
		}
	}
}
