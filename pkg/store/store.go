// Package store defines the content-addressed artifact store consumed by the
// resolver, and a generic implementation over a key-value backend.
//
// Recipes are keyed by [ref.Reference] and binaries by
// [ref.PackageReference]. Every put is assigned a revision, the blake3 digest
// of the content, so identical content yields identical revisions. Revisions
// are immutable; "latest" is the most recently written revision of a
// reference and is maintained by the store alone.
//
// Backends implement [KV]. [NewMemory] keeps everything in memory; the
// badgerstore and mongostore subpackages persist to disk and to MongoDB, and
// the remote subpackage serves any Store over HTTP.
package store

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"

	"github.com/matzehuels/stackforge/pkg/observability"
	"github.com/matzehuels/stackforge/pkg/ref"
)

// Store holds recipes and binaries.
type Store interface {
	// Name identifies the store in logs, for example "local" or a remote name.
	Name() string

	// Exists returns the latest revision of r, or the revision of r itself
	// when it carries one.
	Exists(ctx context.Context, r ref.Reference) (rev string, ok bool, err error)
	ListRevisions(ctx context.Context, r ref.Reference) ([]string, error)
	// List returns every version of name, each with its latest revision.
	List(ctx context.Context, name string) ([]ref.Reference, error)
	Fetch(ctx context.Context, r ref.Reference) ([]byte, ref.Reference, error)
	Put(ctx context.Context, r ref.Reference, data []byte) (rev string, err error)

	ExistsPackage(ctx context.Context, p ref.PackageReference) (prev string, ok bool, err error)
	// ListPackages returns the package IDs stored for r.
	ListPackages(ctx context.Context, r ref.Reference) ([]string, error)
	FetchPackage(ctx context.Context, p ref.PackageReference) ([]byte, ref.PackageReference, error)
	PutPackage(ctx context.Context, p ref.PackageReference, data []byte) (prev string, err error)
	RemovePackage(ctx context.Context, p ref.PackageReference) error

	Close() error
}

// Revision returns the content revision of data.
func Revision(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// observe reports one operation to the store hooks.
func observe(ctx context.Context, backend, op string, start time.Time, err error) {
	observability.Store().OnStoreOp(ctx, backend, op, time.Since(start), err)
}
