package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/events"
)

// ApplyEvent appends event to document (collection, documentID) and, for
// categories 2 and 3, drives the deletion state machine, all inside one
// transaction that row-locks the document. deadline is only consulted when
// the transition enters a deleted stage; it is ignored otherwise.
func (s *Store) ApplyEvent(ctx context.Context, collection string, event Event, deadline time.Time) (Stage, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", apierr.Internalf("store: begin apply event: %s", err)
	}
	defer tx.Rollback()

	var stage string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT stage FROM %s.documents WHERE id=$1 AND collection=$2 FOR UPDATE;`, s.DB.Schema),
		event.DocumentID, collection).Scan(&stage)
	if err == sql.ErrNoRows {
		return "", apierr.NotFoundf("document %s not found", event.DocumentID)
	}
	if err != nil {
		return "", apierr.Internalf("store: lock document for event: %s", err)
	}

	newStage, err := events.Transition(events.Stage(stage), event.Category)
	if err != nil {
		return "", err
	}

	if Stage(newStage) != Stage(stage) {
		if newStage == events.StageDeletedStage1 || newStage == events.StageDeletedStage2 {
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s.documents SET stage=$1, deletion_deadline=$2 WHERE id=$3;`, s.DB.Schema),
				string(newStage), deadline, event.DocumentID)
		} else {
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s.documents SET stage=$1, deletion_deadline=NULL WHERE id=$2;`, s.DB.Schema),
				string(newStage), event.DocumentID)
		}
		if err != nil {
			return "", apierr.Internalf("store: update stage: %s", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.events(document_id, category, payload, ts, actor) VALUES($1,$2,$3,$4,$5);`, s.DB.Schema),
		event.DocumentID, event.Category, []byte(event.Payload), event.TS, event.Actor); err != nil {
		return "", apierr.Internalf("store: insert event: %s", err)
	}

	if err := tx.Commit(); err != nil {
		return "", apierr.Internalf("store: commit apply event: %s", err)
	}
	return Stage(newStage), nil
}

// PromoteExpiredStage1 advances every deleted_stage1 document in collection
// whose deletion_deadline has passed to deleted_stage2, per spec §4.5's
// "after first-stage window" transition, setting a fresh deadline of
// stage2Days out from now. Each promoted document gets a
// CategorySystemPromote event appended with the system actor (uuid.Nil), so
// the sweep's own audit trail reads the same way a caller-driven transition
// would. stage2Days is per-collection (config.DeletionPolicy), which is why
// this takes a single collection name rather than sweeping the whole store
// at once.
func (s *Store) PromoteExpiredStage1(ctx context.Context, collection string, now time.Time, stage2Days int) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, apierr.Internalf("store: begin promote stage2: %s", err)
	}
	defer tx.Rollback()

	newDeadline := now.Add(time.Duration(stage2Days) * 24 * time.Hour)
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`UPDATE %s.documents SET stage=$1, deletion_deadline=$2
		             WHERE collection=$3 AND stage=$4 AND deletion_deadline IS NOT NULL AND deletion_deadline < $5
		             RETURNING id;`, s.DB.Schema),
		string(events.StageDeletedStage2), newDeadline, collection, string(events.StageDeletedStage1), now)
	if err != nil {
		return 0, apierr.Internalf("store: promote expired stage1: %s", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, apierr.Internalf("store: scan promoted document: %s", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, apierr.Internalf("store: iterate promoted documents: %s", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s.events(document_id, category, payload, ts, actor) VALUES($1,$2,$3,$4,$5);`, s.DB.Schema),
			id, events.CategorySystemPromote, []byte(`{}`), now, uuid.Nil); err != nil {
			return 0, apierr.Internalf("store: insert promotion event: %s", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apierr.Internalf("store: commit promote stage2: %s", err)
	}
	return len(ids), nil
}

// PurgeExpired physically deletes documents (and their events and grants)
// that have been in deleted_stage2 past their deletion_deadline. It is
// invoked by the periodic purge sweep, outside the core's request path.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.DB.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s.documents WHERE stage=$1 AND deletion_deadline IS NOT NULL AND deletion_deadline < $2;`, s.DB.Schema),
		string(StageDeletedStage2), now)
	if err != nil {
		return 0, apierr.Internalf("store: purge expired: %s", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
