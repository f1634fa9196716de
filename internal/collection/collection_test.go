package collection

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/store"
)

type testConfig struct {
	DataSource string `env:"FOLIVAFY_TEST_DATABASE,required"`
}

var testFacade *Façade

func TestMain(m *testing.M) {
	var cfg testConfig
	if err := envdecode.Decode(&cfg); err != nil {
		panic(err)
	}
	db := store.Open(cfg.DataSource, "_folivafy_collection_test_")
	db.ClearSchema()
	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		panic(err)
	}
	testFacade = New(st, grants.New(st), map[string]config.DeletionPolicy{"orders": {Stage1Days: 1, Stage2Days: 1}}, nil)
	os.Exit(m.Run())
}

var admin = Principal{ID: uuid.New(), Roles: []string{authz.PlatformAdminRole}}

func TestCreateCollection_RequiresPlatformAdmin(t *testing.T) {
	ctx := context.Background()
	nobody := Principal{ID: uuid.New(), Roles: nil}
	err := testFacade.CreateCollection(ctx, nobody, "should-fail", "Should Fail", false)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Unauthorized {
		t.Fatalf("got %v, want Unauthorized", err)
	}
}

func TestCreateCollection_Success(t *testing.T) {
	ctx := context.Background()
	if err := testFacade.CreateCollection(ctx, admin, "orders", "Orders", true); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	cols, total, err := testFacade.ListCollections(ctx, admin, 10, 0)
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	if total < 1 {
		t.Fatalf("got total %d, want at least 1", total)
	}
	found := false
	for _, c := range cols {
		if c.Name == "orders" {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %+v, want orders present", cols)
	}
}

func TestInsertDocument_RequiresEditCapability(t *testing.T) {
	ctx := context.Background()
	reader := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_READER"}}
	err := testFacade.InsertDocument(ctx, reader, "orders", uuid.New(), []byte(`{"title":"x"}`))
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Unauthorized {
		t.Fatalf("got %v, want Unauthorized", err)
	}
}

func TestInsertAndGetDocument_OwnerCanReadItsOwn(t *testing.T) {
	ctx := context.Background()
	owner := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR"}}
	id := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "orders", id, []byte(`{"title":"my order"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	doc, _, err := testFacade.GetDocument(ctx, owner, "orders", id)
	if err != nil {
		t.Fatalf("owner should read its own document: %v", err)
	}
	if doc.Title != "my order" {
		t.Fatalf("got title %q", doc.Title)
	}
}

func TestGetDocument_OAOHidesOtherOwnersAsNotFound(t *testing.T) {
	ctx := context.Background()
	owner := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR"}}
	stranger := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR"}}
	id := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "orders", id, []byte(`{"title":"private"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	_, _, err := testFacade.GetDocument(ctx, stranger, "orders", id)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.NotFound {
		t.Fatalf("got %v, want NotFound, not Unauthorized — existence must not leak", err)
	}
}

func TestGetDocument_AllReaderSeesOtherOwners(t *testing.T) {
	ctx := context.Background()
	owner := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR"}}
	allReader := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_ALLREADER"}}
	id := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "orders", id, []byte(`{"title":"visible to all-reader"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	doc, _, err := testFacade.GetDocument(ctx, allReader, "orders", id)
	if err != nil {
		t.Fatalf("all-reader should see another owner's document: %v", err)
	}
	if doc.Title != "visible to all-reader" {
		t.Fatalf("got title %q", doc.Title)
	}
}

func TestReplaceDocument_OAOOwnerMismatchIsNotFound(t *testing.T) {
	ctx := context.Background()
	owner := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR"}}
	stranger := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR"}}
	id := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "orders", id, []byte(`{"title":"v1"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	err := testFacade.ReplaceDocument(ctx, stranger, "orders", id, []byte(`{"title":"v2"}`))
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestPostEvent_DeleteRequestRequiresDeletionPolicy(t *testing.T) {
	ctx := context.Background()
	if err := testFacade.CreateCollection(ctx, admin, "invoices", "Invoices", false); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	owner := Principal{ID: uuid.New(), Roles: []string{"C_INVOICES_EDITOR", "C_INVOICES_READER", "C_INVOICES_REMOVER"}}
	id := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "invoices", id, []byte(`{"title":"inv"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	_, err := testFacade.PostEvent(ctx, owner, "invoices", id, store.CategoryDeleteRequest, []byte(`{}`))
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Unauthorized {
		t.Fatalf("got %v, want Unauthorized since invoices has no deletion policy configured", err)
	}
}

func TestPostEvent_DeleteThenRecover(t *testing.T) {
	ctx := context.Background()
	owner := Principal{ID: uuid.New(), Roles: []string{"C_ORDERS_EDITOR", "C_ORDERS_READER", "C_ORDERS_REMOVER"}}
	id := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "orders", id, []byte(`{"title":"to delete"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	stage, err := testFacade.PostEvent(ctx, owner, "orders", id, store.CategoryDeleteRequest, []byte(`{}`))
	if err != nil {
		t.Fatalf("post delete request: %v", err)
	}
	if stage != store.StageDeletedStage1 {
		t.Fatalf("got stage %q, want deleted_stage1", stage)
	}

	stage, err = testFacade.PostEvent(ctx, owner, "orders", id, store.CategoryRecoverRequest, []byte(`{}`))
	if err != nil {
		t.Fatalf("post recover request: %v", err)
	}
	if stage != store.StageActive {
		t.Fatalf("got stage %q, want active", stage)
	}

	// A deleted_stage1 document reads as NotFound through GetDocument even
	// for its own owner, matching the "not visible outside the recoverables
	// view" rule — re-insert and delete once more to assert this directly.
	id2 := uuid.New()
	if err := testFacade.InsertDocument(ctx, owner, "orders", id2, []byte(`{"title":"to delete again"}`)); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	if _, err := testFacade.PostEvent(ctx, owner, "orders", id2, store.CategoryDeleteRequest, []byte(`{}`)); err != nil {
		t.Fatalf("post delete request: %v", err)
	}
	_, _, err = testFacade.GetDocument(ctx, owner, "orders", id2)
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.NotFound {
		t.Fatalf("got %v, want NotFound for a deleted-stage document", err)
	}
}

func TestRebuildGrants_NonOAOCollectionIsNoop(t *testing.T) {
	ctx := context.Background()
	if err := testFacade.RebuildGrants(ctx, admin, "invoices"); err != nil {
		t.Fatalf("rebuild grants on a non-OAO collection should be a no-op: %v", err)
	}
}

func TestRebuildGrants_OAOCollection(t *testing.T) {
	ctx := context.Background()
	if err := testFacade.RebuildGrants(ctx, admin, "orders"); err != nil {
		t.Fatalf("rebuild grants: %v", err)
	}
}
