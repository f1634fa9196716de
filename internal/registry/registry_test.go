package registry

import (
	"os"
	"testing"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/foliva/folivafy/internal/store"
)

type testConfig struct {
	DataSource string `env:"FOLIVAFY_TEST_DATABASE,required"`
}

var testDB *store.DB

func TestMain(m *testing.M) {
	var cfg testConfig
	if err := envdecode.Decode(&cfg); err != nil {
		panic(err)
	}
	testDB = store.Open(cfg.DataSource, "_folivafy_registry_test_")
	testDB.ClearSchema()
	os.Exit(m.Run())
}

func TestLoadPurgeSweepState_NeverRunReturnsZeroValue(t *testing.T) {
	reg := MustNew(testDB)

	state, err := reg.LoadPurgeSweepState()
	if err != nil {
		t.Fatalf("unexpected error for a never-run sweep: %v", err)
	}
	if state.Purged != 0 || state.PromotedToStage2 != 0 || !state.At.IsZero() {
		t.Fatalf("got %+v, want the zero value", state)
	}
}

func TestSaveThenLoadPurgeSweepState_RoundTrips(t *testing.T) {
	reg := MustNew(testDB)

	now := time.Now().UTC().Truncate(time.Second)
	written := PurgeSweepState{PromotedToStage2: 2, Purged: 3, At: now}
	if err := reg.SavePurgeSweepState(written); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := reg.LoadPurgeSweepState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.PromotedToStage2 != 2 || got.Purged != 3 || !got.At.Equal(now) {
		t.Fatalf("got %+v, want %+v", got, written)
	}
}

func TestSavePurgeSweepState_UpsertsOnConflict(t *testing.T) {
	reg := MustNew(testDB)

	if err := reg.SavePurgeSweepState(PurgeSweepState{Purged: 1}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := reg.SavePurgeSweepState(PurgeSweepState{Purged: 5}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := reg.LoadPurgeSweepState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Purged != 5 {
		t.Fatalf("got purged=%d, want 5 after upsert", got.Purged)
	}
}
