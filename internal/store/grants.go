package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/foliva/folivafy/internal/apierr"
)

// DocumentOwner is the (id, owner) pair the grant engine needs to
// regenerate a reader grant row.
type DocumentOwner struct {
	DocumentID uuid.UUID
	OwnerID    uuid.UUID
}

// CountDocuments returns how many documents a collection holds, used by the
// grant engine to size its rebuild batches.
func (s *Store) CountDocuments(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s.documents WHERE collection=$1;`, s.DB.Schema),
		collection).Scan(&n)
	if err != nil {
		return 0, apierr.Internalf("store: count documents: %s", err)
	}
	return n, nil
}

// DocumentOwnersBatch returns one page of (id, owner) pairs for a
// collection, ordered by id for stable pagination across batches.
func (s *Store) DocumentOwnersBatch(ctx context.Context, collection string, offset, limit int) ([]DocumentOwner, error) {
	rows, err := s.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, owner_id FROM %s.documents WHERE collection=$1 ORDER BY id ASC LIMIT $2 OFFSET $3;`, s.DB.Schema),
		collection, limit, offset)
	if err != nil {
		return nil, apierr.Internalf("store: document owners batch: %s", err)
	}
	defer rows.Close()

	var out []DocumentOwner
	for rows.Next() {
		var d DocumentOwner
		if err := rows.Scan(&d.DocumentID, &d.OwnerID); err != nil {
			return nil, apierr.Internalf("store: scan document owner: %s", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ReplaceGrantsForDocuments atomically replaces, for each document in rows,
// its reader grant row, one small transaction per call. Called with small
// batches by the grant engine so a rebuild of an arbitrarily large
// collection never holds one long transaction; per document the delete and
// the insert are atomic, so a reader racing the rebuild sees either the old
// or the new row, never neither.
func (s *Store) ReplaceGrantsForDocuments(ctx context.Context, rows []DocumentOwner) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apierr.Internalf("store: begin grants batch: %s", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s.grants WHERE document_id=$1 AND relation=$2;`, s.DB.Schema),
			row.DocumentID, RelationReader); err != nil {
			return apierr.Internalf("store: delete grant: %s", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s.grants(document_id, user_id, relation) VALUES($1,$2,$3);`, s.DB.Schema),
			row.DocumentID, row.OwnerID, RelationReader); err != nil {
			return apierr.Internalf("store: insert grant: %s", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierr.Internalf("store: commit grants batch: %s", err)
	}
	return nil
}

// GrantCount returns how many grant rows exist for collection, used by
// tests asserting rebuild idempotency (spec §8: "executing twice leaves the
// grant table bit-identical").
func (s *Store) GrantCount(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s.grants g JOIN %s.documents d ON d.id=g.document_id WHERE d.collection=$1;`, s.DB.Schema, s.DB.Schema),
		collection).Scan(&n)
	if err != nil {
		return 0, apierr.Internalf("store: grant count: %s", err)
	}
	return n, nil
}
