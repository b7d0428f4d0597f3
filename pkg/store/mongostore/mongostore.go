// Package mongostore provides a MongoDB backend for the remote store server.
package mongostore

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/stackforge/pkg/store"
)

// Defaults.
const (
	DefaultDatabase   = "stackforge"
	DefaultCollection = "artifacts"
	connectTimeout    = 10 * time.Second
)

// Config configures the connection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	return c
}

type document struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// KV implements [store.KV] on one MongoDB collection, one document per key.
//
// Write uses an ordered bulk write. Entries are applied in order, and store
// writes list data before the revision pointer, so an interrupted write
// leaves at most unreferenced data.
type KV struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.KV = (*KV)(nil)

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, cfg Config) (*KV, error) {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &KV{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

// New connects and wraps the collection in a store named "mongo".
func New(ctx context.Context, cfg Config) (*store.KVStore, error) {
	kv, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store.New("mongo", kv), nil
}

// Get implements [store.KV].
func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc document
	err := k.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongodb get %s: %w", key, err)
	}
	if doc.Value == nil {
		doc.Value = []byte{}
	}
	return doc.Value, true, nil
}

// Write implements [store.KV].
func (k *KV) Write(ctx context.Context, entries []store.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	models := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": e.Key}))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": e.Key}).
			SetReplacement(document{Key: e.Key, Value: e.Value}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := k.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("mongodb write: %w", err)
	}
	return nil
}

// Scan implements [store.KV].
func (k *KV) Scan(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	cur, err := k.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb scan %s: %w", prefix, err)
	}
	defer cur.Close(ctx)

	var keys []string
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		keys = append(keys, doc.Key)
	}
	return keys, cur.Err()
}

// Close implements [store.KV].
func (k *KV) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return k.client.Disconnect(ctx)
}
