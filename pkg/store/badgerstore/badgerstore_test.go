package badgerstore

import (
	"bytes"
	"context"
	"slices"
	"testing"

	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

func openTest(t *testing.T) *store.KVStore {
	t.Helper()
	s, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTripCompressed(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	r := ref.MustParse("openssl/3.1.0")
	payload := bytes.Repeat([]byte("recipe "), 1000)

	rev, err := s.Put(ctx, r, payload)
	if err != nil {
		t.Fatal(err)
	}
	if rev != store.Revision(payload) {
		t.Errorf("revision = %s, want content hash", rev)
	}
	got, gotRef, err := s.Fetch(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) || gotRef.Revision != rev {
		t.Errorf("Fetch returned %d bytes, ref %s", len(got), gotRef.Repr())
	}

	refs, _ := s.List(ctx, "openssl")
	if len(refs) != 1 || !refs[0].Equal(r.WithRevision(rev)) {
		t.Errorf("List = %v", refs)
	}
}

func TestCancelledWriteLeavesNothing(t *testing.T) {
	s := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := ref.NewPackage(ref.MustParse("zlib/1.0"), "abc")
	if _, err := s.PutPackage(ctx, p, []byte("bin")); err == nil {
		t.Fatal("expected error")
	}
	if _, ok, _ := s.ExistsPackage(context.Background(), p); ok {
		t.Error("cancelled write is visible")
	}
}

func TestScanPrefix(t *testing.T) {
	kv, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	ctx := context.Background()
	_ = kv.Write(ctx, []store.Entry{{Key: "a/1", Value: []byte("x")}, {Key: "a/2", Value: []byte{}}, {Key: "b/1", Value: []byte("y")}})
	keys, _ := kv.Scan(ctx, "a/")
	if !slices.Equal(keys, []string{"a/1", "a/2"}) {
		t.Errorf("Scan = %v", keys)
	}
	if v, ok, _ := kv.Get(ctx, "a/2"); !ok || len(v) != 0 {
		t.Errorf("empty value: %q, %v", v, ok)
	}
	_ = kv.Write(ctx, []store.Entry{{Key: "a/1"}})
	if _, ok, _ := kv.Get(ctx, "a/1"); ok {
		t.Error("deleted key still present")
	}
}
