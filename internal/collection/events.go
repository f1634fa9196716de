package collection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/events"
	"github.com/foliva/folivafy/internal/store"
)

// PostEvent implements spec §4.4/§4.5 "post event". It resolves the role
// requirement for the event's category, then lets store.ApplyEvent drive
// the deletion state machine transactionally.
func (f *Façade) PostEvent(ctx context.Context, caller Principal, collectionName string, documentID uuid.UUID, category int, payload json.RawMessage) (store.Stage, error) {
	col, err := f.collectionFor(ctx, collectionName)
	if err != nil {
		return "", err
	}
	if col.Locked {
		return "", apierr.Unauthorizedf("Unauthorized")
	}
	caps := authz.ForCollection(caller.Roles, collectionName)

	var deadline time.Time
	switch category {
	case events.CategoryDeleteRequest:
		policy, enabled := f.deletionPolicies[collectionName]
		if !enabled {
			return "", apierr.Unauthorizedf("Unauthorized")
		}
		if !authz.CanPostLifecycleEvent(caps) {
			return "", apierr.Unauthorizedf("Unauthorized")
		}
		deadline = time.Now().UTC().AddDate(0, 0, policy.Stage1Days)

	case events.CategoryRecoverRequest:
		meta, err := f.store.GetDocumentMeta(ctx, collectionName, documentID.String())
		if err != nil {
			return "", err
		}
		if events.RecoverRequiresAdmin(events.Stage(meta.Stage)) {
			if !authz.CanRecoverStage2(caps) {
				return "", apierr.Unauthorizedf("Unauthorized")
			}
		} else if !authz.CanPostLifecycleEvent(caps) {
			return "", apierr.Unauthorizedf("Unauthorized")
		}
		// Recovery always lands on StageActive; store.ApplyEvent clears
		// deletion_deadline itself, so no deadline is computed here.

	default:
		if !authz.CanPostApplicationEvent(caps) {
			return "", apierr.Unauthorizedf("Unauthorized")
		}
	}

	event := store.Event{
		DocumentID: documentID,
		Category:   category,
		Payload:    payload,
		TS:         time.Now().UTC(),
		Actor:      caller.ID,
	}
	newStage, err := f.store.ApplyEvent(ctx, collectionName, event, deadline)
	if err != nil {
		return "", err
	}
	f.notify(ctx, collectionName, documentID, "event", payload)
	return newStage, nil
}
