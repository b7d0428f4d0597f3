// Package badgerstore provides the local store on BadgerDB.
//
// Values are compressed with zstd. Every store write is one Badger
// transaction, so a write interrupted by cancellation or a crash leaves
// nothing behind.
package badgerstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"

	"github.com/matzehuels/stackforge/pkg/store"
)

// Config configures the database.
type Config struct {
	Path     string // database directory; ignored when InMemory
	InMemory bool
	Logger   *log.Logger
}

// KV implements [store.KV] on a Badger database.
type KV struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ store.KV = (*KV)(nil)

// Open opens the database described by cfg.
func Open(cfg Config) (*KV, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, stderrors.New("badgerstore: path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &KV{db: db, enc: enc, dec: dec}, nil
}

// New opens the database and wraps it in a store named "local".
func New(cfg Config) (*store.KVStore, error) {
	kv, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return store.New("local", kv), nil
}

// Get implements [store.KV].
func (k *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	var compressed []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s: %w", key, err)
	}
	data, err := k.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("zstd decompress %s: %w", key, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Write implements [store.KV]. The context is checked before the
// transaction commits.
func (k *KV) Write(ctx context.Context, entries []store.Entry) error {
	return k.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			var err error
			if e.Value == nil {
				err = txn.Delete([]byte(e.Key))
			} else {
				err = txn.Set([]byte(e.Key), k.enc.EncodeAll(e.Value, nil))
			}
			if err != nil {
				return fmt.Errorf("badger write %s: %w", e.Key, err)
			}
		}
		return ctx.Err()
	})
}

// Scan implements [store.KV].
func (k *KV) Scan(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Close implements [store.KV].
func (k *KV) Close() error {
	k.enc.Close()
	k.dec.Close()
	return k.db.Close()
}

// badgerLogger adapts a charmbracelet logger to Badger's logger interface.
type badgerLogger struct{ l *log.Logger }

func (b *badgerLogger) Errorf(f string, args ...any)   { b.l.Errorf(f, args...) }
func (b *badgerLogger) Warningf(f string, args ...any) { b.l.Warnf(f, args...) }
func (b *badgerLogger) Infof(f string, args ...any)    { b.l.Debugf(f, args...) }
func (b *badgerLogger) Debugf(f string, args ...any)   { b.l.Debugf(f, args...) }
