// Package grants computes and rebuilds the materialized reader-grant rows
// that let the query planner answer OAO visibility without re-deriving
// ownership for every candidate row. Grants are an optimization, never the
// authority: a missing or stale grant must never be read as "deny" by
// anything outside this package (spec §9).
package grants

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/metrics"
	"github.com/foliva/folivafy/internal/store"
)

// batchSize bounds how many documents one rebuild transaction touches, so a
// rebuild of an arbitrarily large collection never holds one long-running
// transaction (spec §4.2).
const batchSize = 500

// poolSize bounds how many batches run concurrently during a rebuild.
const poolSize = 8

// Engine rebuilds grant rows for OAO collections.
type Engine struct {
	store *store.Store
}

// New returns a grant engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Rebuild regenerates every grant row for collection from current document
// ownership. It is idempotent: running it twice in a row leaves the grant
// table bit-identical, because each batch deletes-then-inserts the same
// deterministic row set. Batches run concurrently through a bounded worker
// pool (ants), each batch atomic per document, so readers racing the
// rebuild observe either the pre-rebuild or the post-rebuild row for any
// one document, never a partial mix.
func (e *Engine) Rebuild(ctx context.Context, collection string) error {
	rlog := logger.FromContext(ctx)
	start := time.Now()
	defer func() { metrics.ObserveGrantRebuild(collection, time.Since(start)) }()

	total, err := e.store.CountDocuments(ctx, collection)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	errs := make(chan error, (total/batchSize)+1)
	var wg sync.WaitGroup
	for offset := 0; offset < total; offset += batchSize {
		offset := offset
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			rows, err := e.store.DocumentOwnersBatch(ctx, collection, offset, batchSize)
			if err != nil {
				errs <- err
				return
			}
			if err := e.store.ReplaceGrantsForDocuments(ctx, rows); err != nil {
				errs <- err
				return
			}
		})
		if submitErr != nil {
			wg.Done()
			errs <- submitErr
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			rlog.WithError(err).Error("grant rebuild batch failed")
			return err
		}
	}
	return nil
}
