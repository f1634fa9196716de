package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/foliva/folivafy/internal/apierr"
)

// CreateCollection inserts a new collection row. It reports
// apierr.DuplicateCollection if the name is already taken.
func (s *Store) CreateCollection(ctx context.Context, name, title string, oao bool) error {
	_, err := s.DB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.collections(name, title, oao) VALUES($1,$2,$3);`, s.DB.Schema),
		name, title, oao)
	if isUniqueViolation(err) {
		return apierr.DuplicateCollectionErr()
	}
	if err != nil {
		return apierr.Internalf("store: create collection: %s", err)
	}
	return nil
}

// GetCollection looks up a collection by name. It returns apierr.NotFound if
// no such collection exists.
func (s *Store) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var c Collection
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT name, title, oao, locked, created_at FROM %s.collections WHERE name=$1;`, s.DB.Schema),
		name).Scan(&c.Name, &c.Title, &c.OAO, &c.Locked, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFoundf("collection %s not found", name)
	}
	if err != nil {
		return nil, apierr.Internalf("store: get collection: %s", err)
	}
	return &c, nil
}

// ListCollections returns a page of collections ordered by name, plus the
// total row count.
func (s *Store) ListCollections(ctx context.Context, limit, offset int) ([]Collection, int, error) {
	var total int
	if err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s.collections;`, s.DB.Schema)).Scan(&total); err != nil {
		return nil, 0, apierr.Internalf("store: count collections: %s", err)
	}

	rows, err := s.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT name, title, oao, locked, created_at FROM %s.collections ORDER BY name ASC LIMIT $1 OFFSET $2;`, s.DB.Schema),
		limit, offset)
	if err != nil {
		return nil, 0, apierr.Internalf("store: list collections: %s", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Title, &c.OAO, &c.Locked, &c.CreatedAt); err != nil {
			return nil, 0, apierr.Internalf("store: scan collection: %s", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
