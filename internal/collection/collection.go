// Package collection is the single coordinator named in spec §2.6: it takes
// an authenticated caller plus a request, consults the authorizer, talks to
// the query planner or event applier, and writes through the grant engine
// to the store. Every HTTP handler and CLI command reaches the core only
// through a Façade.
package collection

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/metrics"
	"github.com/foliva/folivafy/internal/store"
)

// Principal is the authenticated caller of a façade operation.
type Principal struct {
	ID    uuid.UUID
	Roles []string
}

var collectionNameRe = regexp.MustCompile(`^[a-z][-a-z0-9]*$`)

// ValidateCollectionName checks the name grammar of spec §3/§6.
func ValidateCollectionName(name string) error {
	if len(name) < 1 || len(name) > 32 || !collectionNameRe.MatchString(name) {
		return apierr.Malformedf("invalid collection name %q", name)
	}
	return nil
}

// ValidateCollectionTitle checks the title length bound of spec §3.
func ValidateCollectionTitle(title string) error {
	if len(title) < 1 || len(title) > 150 {
		return apierr.Malformedf("invalid collection title")
	}
	return nil
}

// SystemMailCollection is the reserved collection the mail worker drains
// (spec §6).
const SystemMailCollection = "folivafy-mail"

// Outbox is the subset of internal/notify.Outbox the façade needs to
// record a mutation for asynchronous downstream publication. It is an
// interface, not a direct dependency on internal/notify, so the façade
// never has to know Kafka exists.
type Outbox interface {
	Append(ctx context.Context, collection string, documentID uuid.UUID, operation string, payload, requestContext json.RawMessage) error
}

// Façade coordinates the store, grant engine, authorizer, and query planner
// into the operations of spec §4.4.
type Façade struct {
	store            *store.Store
	grantEngine      *grants.Engine
	deletionPolicies map[string]config.DeletionPolicy
	outbox           Outbox
}

// New builds a Façade. deletionPolicies is the parsed
// FOLIVAFY_ENABLE_DELETION configuration (spec §6). outbox may be nil, in
// which case mutations are not published anywhere beyond the store.
func New(st *store.Store, ge *grants.Engine, deletionPolicies map[string]config.DeletionPolicy, outbox Outbox) *Façade {
	return &Façade{store: st, grantEngine: ge, deletionPolicies: deletionPolicies, outbox: outbox}
}

// notify is a best-effort, fire-and-forget outbox append: its failure never
// fails the mutation that triggered it (spec §9: the core's correctness
// does not depend on downstream publication).
func (f *Façade) notify(ctx context.Context, collectionName string, documentID uuid.UUID, operation string, payload json.RawMessage) {
	metrics.RecordMutation(collectionName, operation)
	if f.outbox == nil {
		return
	}
	if err := f.outbox.Append(ctx, collectionName, documentID, operation, payload, logger.Serialize(ctx)); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("collection: append outbox entry")
	}
}

// EnsureSystemCollections creates the reserved folivafy-mail collection on
// first boot if it does not exist yet (spec §6).
func (f *Façade) EnsureSystemCollections(ctx context.Context) error {
	_, err := f.store.GetCollection(ctx, SystemMailCollection)
	if err == nil {
		return nil
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.NotFound {
		return err
	}
	err = f.store.CreateCollection(ctx, SystemMailCollection, "Outbound mail", true)
	if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.DuplicateCollection {
		return nil // lost a boot-time race with another instance
	}
	return err
}

// CreateCollection implements spec §4.4 "create collection".
func (f *Façade) CreateCollection(ctx context.Context, caller Principal, name, title string, oao bool) error {
	if !authz.IsPlatformAdmin(caller.Roles) {
		return apierr.Unauthorizedf("Unauthorized")
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := ValidateCollectionTitle(title); err != nil {
		return err
	}
	return f.store.CreateCollection(ctx, name, title, oao)
}

// ListCollections implements spec §4.4 "list collections".
func (f *Façade) ListCollections(ctx context.Context, caller Principal, limit, offset int) ([]store.Collection, int, error) {
	if !authz.IsPlatformAdmin(caller.Roles) {
		return nil, 0, apierr.Unauthorizedf("Unauthorized")
	}
	return f.store.ListCollections(ctx, limit, offset)
}

// RebuildGrants implements spec §4.4 "rebuild grants" / §4.2.
func (f *Façade) RebuildGrants(ctx context.Context, caller Principal, collectionName string) error {
	if !authz.IsPlatformAdmin(caller.Roles) {
		return apierr.Unauthorizedf("Unauthorized")
	}
	col, err := f.store.GetCollection(ctx, collectionName)
	if err != nil {
		return err
	}
	if !col.OAO {
		return nil // non-OAO collections need no grant rows (spec §4.2)
	}
	return f.grantEngine.Rebuild(ctx, collectionName)
}

func (f *Façade) collectionFor(ctx context.Context, name string) (*store.Collection, error) {
	return f.store.GetCollection(ctx, name)
}

// InsertDocument implements spec §4.4 "insert document".
func (f *Façade) InsertDocument(ctx context.Context, caller Principal, collectionName string, id uuid.UUID, payload json.RawMessage) error {
	col, err := f.collectionFor(ctx, collectionName)
	if err != nil {
		return err
	}
	if col.Locked {
		return apierr.Unauthorizedf("Unauthorized")
	}
	caps := authz.ForCollection(caller.Roles, collectionName)
	if !authz.CanEdit(caps) {
		return apierr.Unauthorizedf("Unauthorized")
	}

	now := time.Now().UTC()
	doc := store.Document{
		ID:         id,
		Collection: collectionName,
		OwnerID:    caller.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Payload:    payload,
		Stage:      store.StageActive,
	}
	eventPayload, _ := json.Marshal(map[string]interface{}{"new": true, "user": caller.ID.String()})
	event := store.Event{
		DocumentID: id,
		Category:   store.CategoryOwnership,
		Payload:    eventPayload,
		TS:         now,
		Actor:      caller.ID,
	}
	if err := f.store.InsertDocument(ctx, doc, event, col.OAO); err != nil {
		return err
	}
	f.notify(ctx, collectionName, id, "insert", payload)
	return nil
}

// ReplaceDocument implements spec §4.4 "replace document". OAO ownership
// mismatches are reported as NotFound, not Unauthorized, for the same
// reason OAO reads are: existence is never leaked to a non-owner (spec §7).
func (f *Façade) ReplaceDocument(ctx context.Context, caller Principal, collectionName string, id uuid.UUID, payload json.RawMessage) error {
	col, err := f.collectionFor(ctx, collectionName)
	if err != nil {
		return err
	}
	if col.Locked {
		return apierr.Unauthorizedf("Unauthorized")
	}
	caps := authz.ForCollection(caller.Roles, collectionName)
	if !authz.CanEdit(caps) {
		return apierr.Unauthorizedf("Unauthorized")
	}
	if col.OAO {
		meta, err := f.store.GetDocumentMeta(ctx, collectionName, id.String())
		if err != nil {
			return err
		}
		if meta.OwnerID != caller.ID {
			return apierr.NotFoundf("document %s not found", id)
		}
	}

	now := time.Now().UTC()
	eventPayload, _ := json.Marshal(map[string]interface{}{"user": caller.ID.String()})
	event := store.Event{
		DocumentID: id,
		Category:   store.CategoryOwnership,
		Payload:    eventPayload,
		TS:         now,
		Actor:      caller.ID,
	}
	if err := f.store.ReplaceDocument(ctx, collectionName, event, payload); err != nil {
		return err
	}
	f.notify(ctx, collectionName, id, "replace", payload)
	return nil
}

// GetDocument implements spec §4.4 "read document by id". Only active
// documents are visible through this operation; a deleted-stage document
// reads as NotFound, matching replace's "not visible outside the
// recoverables view" rule (spec §4.5).
func (f *Façade) GetDocument(ctx context.Context, caller Principal, collectionName string, id uuid.UUID) (*store.Document, []store.Event, error) {
	col, err := f.collectionFor(ctx, collectionName)
	if err != nil {
		return nil, nil, apierr.NotFoundf("document %s not found", id)
	}
	caps := authz.ForCollection(caller.Roles, collectionName)
	if !authz.CanRead(caps) {
		return nil, nil, apierr.Unauthorizedf("Unauthorized")
	}

	doc, evs, err := f.store.GetDocument(ctx, collectionName, id.String())
	if err != nil {
		return nil, nil, err
	}
	if doc.Stage != store.StageActive {
		return nil, nil, apierr.NotFoundf("document %s not found", id)
	}
	if col.OAO && !authz.CanReadAnyOwner(caps) && doc.OwnerID != caller.ID {
		return nil, nil, apierr.NotFoundf("document %s not found", id)
	}
	return doc, evs, nil
}
