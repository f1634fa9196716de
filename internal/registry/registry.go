// Package registry persists the purge sweep's last-run bookkeeping in a
// single fixed-key row under the store's schema, so an operator can see the
// sweep is alive even across restarts and across runs that find nothing to
// advance or purge.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/store"
)

// MustNew creates the registry table if it does not exist yet and returns a
// Registry bound to db. Panics on a DDL failure, matching the store's own
// fail-fast startup behavior.
func MustNew(db *store.DB) *Registry {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `._registry_ (
		key varchar NOT NULL,
		value json NOT NULL,
		created_at timestamptz NOT NULL,
		PRIMARY KEY(key)
	);`)
	if err != nil {
		panic(err)
	}
	return &Registry{db: db}
}

// Registry is the purge sweep's single-row bookkeeping store.
type Registry struct {
	db *store.DB
}

const purgeSweepKey = "purge-sweep:last-run"

// PurgeSweepState is what the periodic purge sweep remembers between runs.
type PurgeSweepState struct {
	PromotedToStage2 int       `json:"promotedToStage2"`
	Purged           int       `json:"purged"`
	At               time.Time `json:"at"`
}

// LoadPurgeSweepState returns the most recently saved state, or the zero
// value if the sweep has never run.
func (r *Registry) LoadPurgeSweepState() (PurgeSweepState, error) {
	var (
		raw   json.RawMessage
		state PurgeSweepState
	)
	err := r.db.QueryRow(
		`SELECT value FROM `+r.db.Schema+`._registry_ WHERE key=$1;`, purgeSweepKey,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("registry: load purge sweep state: %w", err)
	}
	return state, json.Unmarshal(raw, &state)
}

// SavePurgeSweepState upserts the current state.
func (r *Registry) SavePurgeSweepState(state PurgeSweepState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`INSERT INTO `+r.db.Schema+`._registry_(key,value,created_at)
		 VALUES($1,$2,$3)
		 ON CONFLICT (key) DO UPDATE SET value=$2,created_at=$3;`,
		purgeSweepKey, string(body), time.Now().UTC())
	return err
}
