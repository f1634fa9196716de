// Package store is the relational backing of the document/collection engine.
// It owns the schema, the transactions, and the uniqueness constraints that
// every higher invariant rests on; every other package reaches the database
// only through this package: Store for the engine's own tables, or the bare
// DB handle for the outbox and registry tables.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver

	"github.com/foliva/folivafy/internal/logger"
)

// DB wraps a standard sql.DB bound to a schema, the way every kurbisio-style
// service in this family does it: one physical database, one schema per
// deployment, so integration tests can spin up isolated schemas side by
// side.
type DB struct {
	*sql.DB
	Schema string
}

// ErrNoRows re-exports sql.ErrNoRows so callers never need to import
// database/sql just to compare errors.
var ErrNoRows = sql.ErrNoRows

// Open connects to dataSourceName and ensures schema exists, creating the
// uuid-ossp extension along the way. It panics on connection failure,
// matching the fail-fast startup behavior the rest of this family uses:
// a service with no database has nothing useful to do.
func Open(dataSourceName, schema string) *DB {
	logger.Default().Infoln("connecting to postgres database")
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		panic(err)
	}
	if err := db.Ping(); err != nil {
		panic(err)
	}
	if schema == "" {
		schema = "public"
	}
	if _, err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`); err != nil {
		logger.Default().WithError(err).Warn("could not ensure uuid-ossp extension")
	}
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schema + `;`); err != nil {
		panic(err)
	}
	return &DB{DB: db, Schema: schema}
}

// ClearSchema drops and recreates the schema. Used by integration tests
// only; refuses to touch "public".
func (db *DB) ClearSchema() {
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	if _, err := db.Exec(`DROP SCHEMA ` + db.Schema + ` CASCADE; CREATE SCHEMA ` + db.Schema + `;`); err != nil {
		panic(err)
	}
}

// Store is the document/collection engine's relational access layer.
type Store struct {
	DB *DB
}

// New wraps an already-open DB.
func New(db *DB) *Store {
	return &Store{DB: db}
}

// Migrate applies the store's schema. Every statement is idempotent
// (CREATE ... IF NOT EXISTS), so Migrate is safe to run on every boot and
// from the `folivafyd migrate` CLI subcommand alike.
func (s *Store) Migrate(ctx context.Context) error {
	schema := s.DB.Schema
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.collections (
			name varchar(32) PRIMARY KEY,
			title varchar(150) NOT NULL,
			oao boolean NOT NULL,
			locked boolean NOT NULL DEFAULT false,
			created_at timestamptz NOT NULL DEFAULT now()
		);`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.documents (
			id uuid PRIMARY KEY,
			collection varchar(32) NOT NULL REFERENCES %s.collections(name),
			owner_id uuid NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			title varchar(150) NOT NULL DEFAULT '',
			payload jsonb NOT NULL,
			stage varchar(20) NOT NULL DEFAULT 'active',
			deletion_deadline timestamptz
		);`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS documents_collection_stage_idx ON %s.documents(collection, stage, created_at, id);`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS documents_title_idx ON %s.documents(collection, lower(title));`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS documents_owner_idx ON %s.documents(collection, owner_id);`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.events (
			id bigserial PRIMARY KEY,
			document_id uuid NOT NULL REFERENCES %s.documents(id) ON DELETE CASCADE,
			category integer NOT NULL,
			payload jsonb NOT NULL,
			ts timestamptz NOT NULL DEFAULT now(),
			actor uuid NOT NULL
		);`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS events_document_idx ON %s.events(document_id, id DESC);`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.grants (
			document_id uuid NOT NULL REFERENCES %s.documents(id) ON DELETE CASCADE,
			user_id uuid NOT NULL,
			relation varchar(20) NOT NULL,
			PRIMARY KEY(document_id, user_id, relation)
		);`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS grants_document_idx ON %s.grants(document_id);`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS grants_user_idx ON %s.grants(user_id);`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s._registry_ (
			key varchar NOT NULL,
			value json NOT NULL,
			created_at timestamptz NOT NULL,
			PRIMARY KEY(key)
		);`, schema),
	}
	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
