package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/foliva/folivafy/internal/apierr"
)

// InsertDocument writes a new document plus its implicit category-1 event
// inside one transaction. If writeGrant is set (the collection is OAO), a
// reader grant for the owner is written in the same transaction, so a
// reader never observes a document without its grant row.
func (s *Store) InsertDocument(ctx context.Context, doc Document, event Event, writeGrant bool) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apierr.Internalf("store: begin insert: %s", err)
	}
	defer tx.Rollback()

	doc.Title = titleFromPayload(doc.Payload)
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.documents(id, collection, owner_id, created_at, updated_at, title, payload, stage)
		             VALUES($1,$2,$3,$4,$4,$5,$6,$7);`, s.DB.Schema),
		doc.ID, doc.Collection, doc.OwnerID, doc.CreatedAt, doc.Title, []byte(doc.Payload), string(StageActive))
	if isUniqueViolation(err) {
		return apierr.DuplicateDocumentErr()
	}
	if err != nil {
		return apierr.Internalf("store: insert document: %s", err)
	}

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.events(document_id, category, payload, ts, actor) VALUES($1,$2,$3,$4,$5);`, s.DB.Schema),
		event.DocumentID, event.Category, []byte(event.Payload), event.TS, event.Actor); err != nil {
		return apierr.Internalf("store: insert creation event: %s", err)
	}

	if writeGrant {
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s.grants(document_id, user_id, relation) VALUES($1,$2,$3) ON CONFLICT DO NOTHING;`, s.DB.Schema),
			doc.ID, doc.OwnerID, RelationReader); err != nil {
			return apierr.Internalf("store: insert grant: %s", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierr.Internalf("store: commit insert: %s", err)
	}
	return nil
}

// ReplaceDocument rewrites an active document's payload and records the
// replacement's category-1 event. It returns apierr.NotFound both when the
// document does not exist in the collection and when it exists but is not
// in stage active — deleted documents are not visible outside the
// recoverables view, replace included.
func (s *Store) ReplaceDocument(ctx context.Context, collection string, event Event, payload []byte) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apierr.Internalf("store: begin replace: %s", err)
	}
	defer tx.Rollback()

	var stage string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT stage FROM %s.documents WHERE id=$1 AND collection=$2 FOR UPDATE;`, s.DB.Schema),
		event.DocumentID, collection).Scan(&stage)
	if err == sql.ErrNoRows {
		return apierr.NotFoundf("document %s not found", event.DocumentID)
	}
	if err != nil {
		return apierr.Internalf("store: lock document for replace: %s", err)
	}
	if Stage(stage) != StageActive {
		return apierr.NotFoundf("document %s not found", event.DocumentID)
	}

	title := titleFromPayload(payload)
	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s.documents SET payload=$1, title=$2, updated_at=$3 WHERE id=$4;`, s.DB.Schema),
		payload, title, event.TS, event.DocumentID); err != nil {
		return apierr.Internalf("store: update document: %s", err)
	}

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.events(document_id, category, payload, ts, actor) VALUES($1,$2,$3,$4,$5);`, s.DB.Schema),
		event.DocumentID, event.Category, []byte(event.Payload), event.TS, event.Actor); err != nil {
		return apierr.Internalf("store: insert replace event: %s", err)
	}

	if err := tx.Commit(); err != nil {
		return apierr.Internalf("store: commit replace: %s", err)
	}
	return nil
}

// GetDocumentMeta fetches a document's metadata only (no event trail), used
// by the façade to resolve ownership and stage before deciding whether a
// mutation is authorized.
func (s *Store) GetDocumentMeta(ctx context.Context, collection, id string) (*Document, error) {
	var d Document
	var stage string
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, collection, owner_id, created_at, updated_at, title, payload, stage, deletion_deadline
		             FROM %s.documents WHERE id=$1 AND collection=$2;`, s.DB.Schema),
		id, collection).Scan(&d.ID, &d.Collection, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt, &d.Title, &d.Payload, &stage, &d.DeletionDeadline)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("document %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internalf("store: get document meta: %s", err)
	}
	d.Stage = Stage(stage)
	return &d, nil
}

// GetDocument fetches a document by (collection, id) plus its full event
// trail ordered newest-first. It returns apierr.NotFound if the pair does
// not resolve, including the case where the id exists in a different
// collection.
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*Document, []Event, error) {
	var d Document
	var stage string
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, collection, owner_id, created_at, updated_at, title, payload, stage, deletion_deadline
		             FROM %s.documents WHERE id=$1 AND collection=$2;`, s.DB.Schema),
		id, collection).Scan(&d.ID, &d.Collection, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt, &d.Title, &d.Payload, &stage, &d.DeletionDeadline)
	if err == sql.ErrNoRows {
		return nil, nil, apierr.NotFoundf("document %s not found", id)
	}
	if err != nil {
		return nil, nil, apierr.Internalf("store: get document: %s", err)
	}
	d.Stage = Stage(stage)

	rows, err := s.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, document_id, category, payload, ts, actor FROM %s.events WHERE document_id=$1 ORDER BY id DESC;`, s.DB.Schema),
		d.ID)
	if err != nil {
		return nil, nil, apierr.Internalf("store: list events: %s", err)
	}
	defer rows.Close()

	var evs []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Category, &e.Payload, &e.TS, &e.Actor); err != nil {
			return nil, nil, apierr.Internalf("store: scan event: %s", err)
		}
		evs = append(evs, e)
	}
	return &d, evs, rows.Err()
}
