package engine

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackforge/pkg/binaries"
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// UploadResult lists what [Engine.Upload] copied.
type UploadResult struct {
	Recipe   ref.Reference // with the revision stored on the remote
	Packages []string      // package IDs, sorted
}

// Upload copies the latest recipe revision of r and, unless recipeOnly,
// every binary stored for it from the local store to dst. Binaries are
// copied on a bounded pool; the first failure cancels the rest.
func (e *Engine) Upload(ctx context.Context, r ref.Reference, dst store.Store, recipeOnly bool, parallel int) (*UploadResult, error) {
	if parallel <= 0 {
		parallel = binaries.DefaultParallel
	}
	logger := e.Logger.With("ref", r.String(), "remote", dst.Name())

	data, got, err := e.Local.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	rev, err := dst.Put(ctx, got.WithoutRevision(), data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "upload recipe %s to %s", got, dst.Name())
	}
	if rev != got.Revision {
		return nil, errors.New(errors.ErrCodeInternal, "remote %s stored %s as revision %s, want %s", dst.Name(), got, rev, got.Revision)
	}
	logger.Info("uploaded recipe", "revision", rev)

	res := &UploadResult{Recipe: got}
	if recipeOnly {
		return res, nil
	}

	ids, err := e.Local.ListPackages(ctx, got)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for _, id := range ids {
		eg.Go(func() error {
			p := ref.NewPackage(got, id)
			data, have, err := e.Local.FetchPackage(gctx, p)
			if err != nil {
				return err
			}
			if _, err := dst.PutPackage(gctx, have, data); err != nil {
				return errors.Wrap(errors.ErrCodeNetwork, err, "upload %s to %s", have, dst.Name())
			}
			logger.Debug("uploaded package", "package", id)
			mu.Lock()
			res.Packages = append(res.Packages, id)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	slices.Sort(res.Packages)
	logger.Info("uploaded packages", "count", len(res.Packages))
	return res, nil
}
