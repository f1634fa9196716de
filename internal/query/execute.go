package query

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/store"
)

// DefaultLimit and MaxLimit bound the pagination window (spec §4.3, §6).
const (
	DefaultLimit = 50
	MaxLimit     = 250
)

// Params is one compiled search request: filter, sort, projection, and
// pagination, all already validated.
type Params struct {
	Filter      Filter
	Sort        []SortTerm
	ExtraFields []string
	Limit       int
	Offset      int
	ExactTitle  string
}

// NormalizeLimitOffset applies the defaults and bounds of spec §4.3/§6 to
// raw, possibly-zero query parameters.
func NormalizeLimitOffset(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return 0, 0, apierr.Malformedf("limit must be between 1 and %d", MaxLimit)
	}
	if offset < 0 {
		return 0, 0, apierr.Malformedf("offset must not be negative")
	}
	return limit, offset, nil
}

// Scope is the visibility restriction the façade derives from the caller's
// capabilities before the planner ever looks at a document (spec §4.3.5).
// OwnerID is nil when the caller may see every document in the allowed
// stages, regardless of owner.
type Scope struct {
	Stages  []store.Stage
	OwnerID *uuid.UUID
}

// Item is one projected search result.
type Item struct {
	ID string                 `json:"id"`
	F  map[string]interface{} `json:"f"`
}

// Result is the shape returned by list/search endpoints (spec §4.3.6).
type Result struct {
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Total  int    `json:"total"`
	Items  []Item `json:"items"`
}

type docWrap struct{ d store.Document }

func (w docWrap) sortPayload() []byte             { return []byte(w.d.Payload) }
func (w docWrap) sortOwnerID() string             { return w.d.OwnerID.String() }
func (w docWrap) sortCreatedAtUnixNano() int64     { return w.d.CreatedAt.UnixNano() }
func (w docWrap) sortID() string                  { return w.d.ID.String() }

// Execute fetches scope's candidate documents, applies the filter and
// exactTitle restriction, sorts, paginates, and projects the page into the
// result shape.
func Execute(ctx context.Context, st *store.Store, collection string, scope Scope, p Params) (*Result, error) {
	candidates, err := st.FetchCandidates(ctx, collection, scope.Stages, scope.OwnerID)
	if err != nil {
		return nil, err
	}

	matched := make([]store.Document, 0, len(candidates))
	for _, d := range candidates {
		if p.ExactTitle != "" && !strings.EqualFold(d.Title, p.ExactTitle) {
			continue
		}
		if !p.Filter.Evaluate(d.Payload, d.OwnerID.String()) {
			continue
		}
		matched = append(matched, d)
	}
	total := len(matched)

	wraps := make([]docWrap, len(matched))
	for i, d := range matched {
		wraps[i] = docWrap{d}
	}
	Order(wraps, p.Sort)

	start := p.Offset
	if start > len(wraps) {
		start = len(wraps)
	}
	end := start + p.Limit
	if end > len(wraps) {
		end = len(wraps)
	}
	page := wraps[start:end]

	items := make([]Item, len(page))
	for i, w := range page {
		items[i] = Item{
			ID: w.d.ID.String(),
			F:  Project(w.d.Payload, w.d.OwnerID.String(), w.d.Title, p.ExtraFields),
		}
	}

	return &Result{Limit: p.Limit, Offset: p.Offset, Total: total, Items: items}, nil
}
