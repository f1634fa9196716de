package httpapi

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/foliva/folivafy/internal/apierr"
)

// postEvent implements POST /api/events (spec §6): body
// {category, collection, document, e}. Note "e" is the event payload
// field here too, matching the single-document read's event trail shape.
func (a *API) postEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := principalFromRequest(r)
	if !ok {
		writeError(w, r, apierr.Unauthorizedf("Unauthorized"))
		return
	}
	var body struct {
		Category   int             `json:"category"`
		Collection string          `json:"collection"`
		Document   uuid.UUID       `json:"document"`
		E          json.RawMessage `json:"e"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apierr.Malformedf("malformed request body"))
		return
	}
	if _, err := a.facade.PostEvent(r.Context(), caller, body.Collection, body.Document, body.Category, body.E); err != nil {
		writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Done")
}

// recoverables implements GET /api/recoverables/{collection} (spec §4.4):
// the same paginated result shape as search, restricted to the deleted
// stages the caller's role may see.
func (a *API) recoverables(w http.ResponseWriter, r *http.Request) {
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
	result, err := a.facade.Recoverables(r.Context(), caller, mux.Vars(r)["collection"], p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONWithETag(w, r, http.StatusOK, result)
}
