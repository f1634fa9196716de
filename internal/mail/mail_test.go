package mail

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"

	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/store"
)

type testConfig struct {
	DataSource string `env:"FOLIVAFY_TEST_DATABASE,required"`
}

var testFacade *collection.Façade

var systemPrincipal = collection.Principal{
	ID:    uuid.Nil,
	Roles: []string{authz.PlatformAdminRole, "C_FOLIVAFY-MAIL_ADMIN", "C_FOLIVAFY-MAIL_EDITOR"},
}

func TestMain(m *testing.M) {
	var cfg testConfig
	if err := envdecode.Decode(&cfg); err != nil {
		panic(err)
	}
	db := store.Open(cfg.DataSource, "_folivafy_mail_test_")
	db.ClearSchema()
	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		panic(err)
	}
	testFacade = collection.New(st, grants.New(st), map[string]config.DeletionPolicy{}, nil)
	if err := testFacade.EnsureSystemCollections(context.Background()); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeSender records every message handed to it and can be told to fail
// every delivery, so tests can exercise both the sent and
// failed outcome paths of drain without a live SMTP relay.
type fakeSender struct {
	mu       sync.Mutex
	sent     []Message
	failWith error
}

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, msg)
	return nil
}

func insertMailDocument(t *testing.T, msg Message) uuid.UUID {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	if err := testFacade.InsertDocument(context.Background(), systemPrincipal, collection.SystemMailCollection, id, payload); err != nil {
		t.Fatalf("insert mail document: %v", err)
	}
	return id
}

func TestDrain_SendsPendingMessageAndMarksSent(t *testing.T) {
	id := insertMailDocument(t, Message{To: "user@example.com", Subject: "hi", Body: "hello", State: StatePending})

	sender := &fakeSender{}
	w := NewWorker(testFacade, sender, systemPrincipal)
	w.drain(context.Background())

	doc, _, err := testFacade.GetDocument(context.Background(), systemPrincipal, collection.SystemMailCollection, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	var got Message
	if err := json.Unmarshal(doc.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.State != StateSent {
		t.Fatalf("got state %q, want Sent", got.State)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "user@example.com" {
		t.Fatalf("got sent %+v", sender.sent)
	}
}

func TestDrain_FailedSendMarksFailed(t *testing.T) {
	id := insertMailDocument(t, Message{To: "user2@example.com", Subject: "hi", Body: "hello", State: StatePending})

	sender := &fakeSender{failWith: fmt.Errorf("relay unreachable")}
	w := NewWorker(testFacade, sender, systemPrincipal)
	w.drain(context.Background())

	doc, _, err := testFacade.GetDocument(context.Background(), systemPrincipal, collection.SystemMailCollection, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	var got Message
	if err := json.Unmarshal(doc.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.State != StateFailed {
		t.Fatalf("got state %q, want Failed", got.State)
	}
}

func TestDrain_AlreadySentMessageIsIgnored(t *testing.T) {
	id := insertMailDocument(t, Message{To: "user3@example.com", Subject: "hi", Body: "hello", State: StateSent})

	sender := &fakeSender{}
	w := NewWorker(testFacade, sender, systemPrincipal)
	w.drain(context.Background())

	if len(sender.sent) != 0 {
		t.Fatalf("got %d sends, want 0 for an already-sent message", len(sender.sent))
	}

	doc, _, err := testFacade.GetDocument(context.Background(), systemPrincipal, collection.SystemMailCollection, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	var got Message
	if err := json.Unmarshal(doc.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.State != StateSent {
		t.Fatalf("got state %q, want unchanged Sent", got.State)
	}
}
