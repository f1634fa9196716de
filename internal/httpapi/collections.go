package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/query"
	"github.com/foliva/folivafy/internal/schema"
)

// collectionDTO is the wire shape of one collection in a CollectionsList
// (spec §6: "GET /api/collections -> paginated CollectionsList").
type collectionDTO struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	OAO   bool   `json:"oao"`
}

type collectionsList struct {
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Total  int             `json:"total"`
	Items  []collectionDTO `json:"items"`
}

func (a *API) listCollections(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	limit, offset, err := query.NormalizeLimitOffset(intParam(r, "limit", 0), intParam(r, "offset", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cols, total, err := a.facade.ListCollections(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]collectionDTO, len(cols))
	for i, c := range cols {
		items[i] = collectionDTO{Name: c.Name, Title: c.Title, OAO: c.OAO}
	}
	writeJSON(w, http.StatusOK, collectionsList{Limit: limit, Offset: offset, Total: total, Items: items})
}

func (a *API) createCollection(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, apierr.Malformedf("malformed request body"))
		return
	}
	if err := a.validator.Validate(schema.CollectionEnvelope, raw); err != nil {
		writeError(w, r, apierr.Malformedf("%s", err))
		return
	}
	var body struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		OAO   bool   `json:"oao"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, r, apierr.Malformedf("malformed request body"))
		return
	}
	if err := a.facade.CreateCollection(r.Context(), caller, body.Name, body.Title, body.OAO); err != nil {
		writeError(w, r, err)
		return
	}
	writeText(w, http.StatusCreated, "Collection "+body.Name+" created")
}

func (a *API) rebuildGrants(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	col := mux.Vars(r)["collection"]
	if err := a.facade.RebuildGrants(r.Context(), caller, col); err != nil {
		writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Done")
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
