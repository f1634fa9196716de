// Package migrate is the schema migrator boundary (spec §1: "out of
// scope... re-specified only at the boundary it presents to the core").
// It does nothing beyond invoking the store's own idempotent DDL; there is
// no separate migration-file runner because the store's Migrate already is
// one.
package migrate

import (
	"context"

	"github.com/foliva/folivafy/internal/store"
)

// Run applies the store's schema migration to db.
func Run(ctx context.Context, db *store.DB) error {
	return store.New(db).Migrate(ctx)
}
