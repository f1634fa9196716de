package httpapi

import (
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/logger"
)

// writeError renders err as the text or JSON-envelope body its apierr.Kind
// calls for (spec §7, DESIGN.md open question #1). Unrecognized errors are
// treated as internal errors and logged, matching spec §7's "only internal
// error is logged" propagation rule.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = &apierr.Error{Kind: apierr.Internal, Message: err.Error()}
	}
	if apiErr.Kind == apierr.Internal {
		logger.FromContext(r.Context()).WithError(err).Error("internal error")
	}

	status := apiErr.Kind.HTTPStatus()
	if apiErr.Kind.JSONEnvelope() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"message": apiErr.Message})
		return
	}
	http.Error(w, apiErr.Message, status)
}

// writeText writes a plain-text body with status.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// writeJSON writes v as a JSON body with status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// bytesToEtag hashes body into a weak content fingerprint, the same way the
// teacher computes an ETag for collection and document reads.
func bytesToEtag(body []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(body))
}

// ifNoneMatch reports whether the If-None-Match request header, which may
// name a comma-separated list of etags or "*", already matches etag.
func ifNoneMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.Trim(candidate, " \"") == strings.Trim(etag, " \"") {
			return true
		}
	}
	return false
}

// writeJSONWithETag writes v as a JSON body with an ETag header computed
// from its serialized bytes, and short-circuits to 304 Not Modified if the
// request's If-None-Match header already names that ETag. Used for
// single-document reads and search results, the two read paths the spec
// calls out for conditional-request support.
func writeJSONWithETag(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, apierr.Internalf("httpapi: marshal response: %s", err))
		return
	}
	etag := `"` + bytesToEtag(body) + `"`
	w.Header().Set("ETag", etag)
	if ifNoneMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
