package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/foliva/folivafy/internal/apierr"
)

// FetchCandidates returns every document in collection whose stage is in
// stages (and, if ownerID is non-nil, whose owner_id matches), ordered by
// the spec's fixed tie-break (created_at, id) so downstream sort and
// pagination stay stable. The caller — internal/query — applies the filter
// tree, sort, projection, and limit/offset in Go: the filter grammar's
// "absent compares false under every operator including ne" rule does not
// translate cleanly into a single SQL predicate, so SQL only pushes down
// the coarse, authoritative visibility/stage restriction and the rest runs
// over the decoded JSON payload.
func (s *Store) FetchCandidates(ctx context.Context, collection string, stages []Stage, ownerID *uuid.UUID) ([]Document, error) {
	strStages := make([]string, len(stages))
	for i, st := range stages {
		strStages[i] = string(st)
	}

	query := fmt.Sprintf(`SELECT id, collection, owner_id, created_at, updated_at, title, payload, stage, deletion_deadline
	                       FROM %s.documents WHERE collection=$1 AND stage = ANY($2)`, s.DB.Schema)
	args := []interface{}{collection, pq.Array(strStages)}
	if ownerID != nil {
		query += " AND owner_id=$3"
		args = append(args, *ownerID)
	}
	query += " ORDER BY created_at ASC, id ASC;"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Internalf("store: fetch candidates: %s", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var stage string
		if err := rows.Scan(&d.ID, &d.Collection, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt, &d.Title, &d.Payload, &stage, &d.DeletionDeadline); err != nil {
			return nil, apierr.Internalf("store: scan candidate: %s", err)
		}
		d.Stage = Stage(stage)
		out = append(out, d)
	}
	return out, rows.Err()
}
