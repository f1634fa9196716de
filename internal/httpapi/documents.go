package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/query"
	"github.com/foliva/folivafy/internal/schema"
)

// eventDTO is the wire shape of one event in a single-document read's
// trail: `e:[{id?,category,ts,e}…]` (spec §6) — note the event body is
// carried under the key "e", not "payload".
type eventDTO struct {
	ID          int64           `json:"id,omitempty"`
	Category    int             `json:"category"`
	TS          time.Time       `json:"ts"`
	E           json.RawMessage `json:"e"`
	Actor       uuid.UUID       `json:"actor"`
	ActorName   string          `json:"actorDisplayName,omitempty"`
}

func (a *API) searchParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	limit, offset, err := query.NormalizeLimitOffset(intParam(r, "limit", 0), intParam(r, "offset", 0))
	if err != nil {
		return query.Params{}, err
	}
	sortTerms, err := query.ParseSort(q.Get("sort"))
	if err != nil {
		return query.Params{}, err
	}
	filter, err := query.ParsePFilter(q["pfilter"])
	if err != nil {
		return query.Params{}, err
	}
	var extraFields []string
	if raw := q.Get("extraFields"); raw != "" {
		extraFields = strings.Split(raw, ",")
	}
	return query.Params{
		Filter:      filter,
		Sort:        sortTerms,
		ExtraFields: extraFields,
		Limit:       limit,
		Offset:      offset,
		ExactTitle:  q.Get("exactTitle"),
	}, nil
}

func (a *API) searchDocumentsGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	p, err := a.searchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := a.facade.Search(r.Context(), caller, mux.Vars(r)["collection"], p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONWithETag(w, r, http.StatusOK, result)
}

func (a *API) searchDocumentsPost(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	var body struct {
		Filter      json.RawMessage `json:"filter"`
		Sort        string          `json:"sort"`
		ExtraFields []string        `json:"extraFields"`
		Limit       int             `json:"limit"`
		Offset      int             `json:"offset"`
		ExactTitle  string          `json:"exactTitle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apierr.Malformedf("malformed request body"))
		return
	}
	var filter query.Filter
	if len(body.Filter) > 0 {
		if err := a.validator.Validate(schema.FilterEnvelope, body.Filter); err != nil {
			writeError(w, r, apierr.Malformedf("%s", err))
			return
		}
		if err := json.Unmarshal(body.Filter, &filter); err != nil {
			writeError(w, r, apierr.Malformedf("malformed filter"))
			return
		}
	}
	if err := filter.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	sortTerms, err := query.ParseSort(body.Sort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, offset, err := query.NormalizeLimitOffset(body.Limit, body.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := query.Params{
		Filter:      filter,
		Sort:        sortTerms,
		ExtraFields: body.ExtraFields,
		Limit:       limit,
		Offset:      offset,
		ExactTitle:  body.ExactTitle,
	}
	result, err := a.facade.Search(r.Context(), caller, mux.Vars(r)["collection"], p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONWithETag(w, r, http.StatusOK, result)
}

func (a *API) insertDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	var body struct {
		ID uuid.UUID       `json:"id"`
		F  json.RawMessage `json:"f"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apierr.Malformedf("malformed request body"))
		return
	}
	col := mux.Vars(r)["collection"]
	if err := a.facade.InsertDocument(r.Context(), caller, col, body.ID, body.F); err != nil {
		writeError(w, r, err)
		return
	}
	writeText(w, http.StatusCreated, "Document saved")
}

func (a *API) replaceDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	var body struct {
		ID uuid.UUID       `json:"id"`
		F  json.RawMessage `json:"f"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apierr.Malformedf("malformed request body"))
		return
	}
	col := mux.Vars(r)["collection"]
	if err := a.facade.ReplaceDocument(r.Context(), caller, col, body.ID, body.F); err != nil {
		writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Document updated")
}

func (a *API) getDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		writeText(w, http.StatusNotFound, "Document "+vars["id"]+" not found")
		return
	}
	doc, evs, err := a.facade.GetDocument(r.Context(), caller, vars["collection"], id)
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.NotFound {
			writeText(w, http.StatusNotFound, "Document "+id.String()+" not found")
			return
		}
		writeError(w, r, err)
		return
	}

	events := make([]eventDTO, len(evs))
	for i, e := range evs {
		dto := eventDTO{ID: e.ID, Category: e.Category, TS: e.TS, E: e.Payload, Actor: e.Actor}
		if name, err := a.identity.DisplayName(r.Context(), e.Actor); err == nil {
			dto.ActorName = name
		}
		events[i] = dto
	}
	writeJSONWithETag(w, r, http.StatusOK, map[string]interface{}{
		"id": doc.ID,
		"f":  doc.Payload,
		"e":  events,
	})
}
