package hclrecipe

import (
	"context"
	"sync"

	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// StoreEvaluator loads recipe sources from a store.
type StoreEvaluator struct {
	st store.Store

	mu     sync.Mutex
	parsed map[string]*Recipe // reference with revision -> recipe
}

var _ recipe.Evaluator = (*StoreEvaluator)(nil)

// NewStoreEvaluator creates an evaluator over st.
func NewStoreEvaluator(st store.Store) *StoreEvaluator {
	return &StoreEvaluator{st: st, parsed: make(map[string]*Recipe)}
}

// Load implements [recipe.Evaluator].
func (e *StoreEvaluator) Load(ctx context.Context, r ref.Reference) (recipe.Recipe, ref.Reference, error) {
	src, got, err := e.st.Fetch(ctx, r)
	if err != nil {
		return nil, ref.Reference{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec, ok := e.parsed[got.Repr()]; ok {
		return rec, got, nil
	}
	rec, err := Parse(src, got.Repr())
	if err != nil {
		return nil, ref.Reference{}, err
	}
	rec = rec.Bind(got.WithoutRevision())
	e.parsed[got.Repr()] = rec
	return rec, got, nil
}
