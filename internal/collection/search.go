package collection

import (
	"context"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/query"
	"github.com/foliva/folivafy/internal/store"
)

// Search implements spec §4.4 "list/search documents": GET list with
// pfilter/sort query parameters, and POST search with a structured filter
// tree, converge on the same planner call once the façade has resolved
// visibility.
func (f *Façade) Search(ctx context.Context, caller Principal, collectionName string, p query.Params) (*query.Result, error) {
	col, err := f.collectionFor(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	caps := authz.ForCollection(caller.Roles, collectionName)
	if !authz.CanRead(caps) {
		return nil, apierr.Unauthorizedf("Unauthorized")
	}

	scope := query.Scope{Stages: []store.Stage{store.StageActive}}
	if col.OAO && !authz.CanReadAnyOwner(caps) {
		id := caller.ID
		scope.OwnerID = &id
	}
	return query.Execute(ctx, f.store, collectionName, scope, p)
}

// Recoverables implements spec §4.4 "list recoverable documents" /
// §4.3.5: stage1 is visible to remover+reader, stage2 only to holders of
// the collection's admin role. A caller with neither capability is unauthorized; a
// caller with both sees both stages in one page.
func (f *Façade) Recoverables(ctx context.Context, caller Principal, collectionName string, p query.Params) (*query.Result, error) {
	if _, err := f.collectionFor(ctx, collectionName); err != nil {
		return nil, err
	}
	caps := authz.ForCollection(caller.Roles, collectionName)

	var stages []store.Stage
	if authz.CanPostLifecycleEvent(caps) {
		stages = append(stages, store.StageDeletedStage1)
	}
	if authz.CanRecoverStage2(caps) {
		stages = append(stages, store.StageDeletedStage2)
	}
	if len(stages) == 0 {
		return nil, apierr.Unauthorizedf("Unauthorized")
	}

	scope := query.Scope{Stages: stages}
	return query.Execute(ctx, f.store, collectionName, scope, p)
}
