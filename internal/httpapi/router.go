// Package httpapi is the HTTP surface named as an external collaborator in
// spec §1/§6: it turns the literal resource shape of spec §6 into calls
// against internal/collection.Façade. It is grounded on the teacher's own
// route wiring (core/backend/backend.go, collection.go): gorilla/mux for
// routing, gorilla/handlers for per-route response compression, and the
// request-id logging middleware from internal/logger.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/foliva/folivafy/internal/authn"
	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/identity"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/metrics"
	"github.com/foliva/folivafy/internal/schema"
)

// API wires a Façade and a token Verifier into a mux.Router.
type API struct {
	facade    *collection.Façade
	verifier  *authn.Verifier
	validator *schema.Validator
	identity  identity.Lookup
}

// New builds an API. identity resolves actor display names for the event
// trail returned by getDocument; pass identity.NoopLookup{} when
// USERDATA_URL is not configured.
func New(facade *collection.Façade, verifier *authn.Verifier, validator *schema.Validator, lookup identity.Lookup) *API {
	return &API{facade: facade, verifier: verifier, validator: validator, identity: lookup}
}

// Router builds the full route table of spec §6.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()
	logger.AddRequestID(router)
	router.Use(a.corsMiddleware)
	router.Use(a.authMiddleware)
	router.Use(metricsMiddleware)

	router.Handle("/api/collections", handlers.CompressHandler(http.HandlerFunc(a.listCollections))).Methods(http.MethodGet)
	router.Handle("/api/collections", handlers.CompressHandler(http.HandlerFunc(a.createCollection))).Methods(http.MethodPost)

	router.Handle("/api/collections/{collection}", handlers.CompressHandler(http.HandlerFunc(a.searchDocumentsGet))).Methods(http.MethodGet)
	router.Handle("/api/collections/{collection}/search", handlers.CompressHandler(http.HandlerFunc(a.searchDocumentsPost))).Methods(http.MethodPost)
	router.Handle("/api/collections/{collection}", handlers.CompressHandler(http.HandlerFunc(a.insertDocument))).Methods(http.MethodPost)
	router.Handle("/api/collections/{collection}", handlers.CompressHandler(http.HandlerFunc(a.replaceDocument))).Methods(http.MethodPut)
	router.Handle("/api/collections/{collection}/{id}", handlers.CompressHandler(http.HandlerFunc(a.getDocument))).Methods(http.MethodGet)

	router.Handle("/api/events", handlers.CompressHandler(http.HandlerFunc(a.postEvent))).Methods(http.MethodPost)
	router.Handle("/api/recoverables/{collection}", handlers.CompressHandler(http.HandlerFunc(a.recoverables))).Methods(http.MethodGet)
	router.Handle("/api/maintenance/{collection}/rebuild-grants", handlers.CompressHandler(http.HandlerFunc(a.rebuildGrants))).Methods(http.MethodPost)

	return router
}

// corsMiddleware mirrors the teacher's manual CORS handling
// (core/backend/cors.go) rather than reaching for a third-party CORS
// package: the rule set is three header writes and an OPTIONS short-circuit,
// nothing a library meaningfully improves on.
func (a *API) corsMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the bearer token into a Principal and stores it
// on the context. Missing or invalid tokens are not rejected here — they
// are rejected uniformly as Unauthorized by each handler, the same way an
// editor without a reader role is rejected, so existence is never leaked by
// a different failure mode at this layer (spec §7).
func (a *API) authMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.verifier.Authenticate(r); ok {
			ctx := authn.ContextWithPrincipal(r.Context(), p)
			ctx, _ = logger.ContextWithActor(ctx, p.ID.String())
			r = r.WithContext(ctx)
		}
		h.ServeHTTP(w, r)
	})
}

func principalFromRequest(r *http.Request) (collection.Principal, bool) {
	return authn.PrincipalFromContext(r.Context())
}

// statusCapturingWriter records the status code a handler writes, since
// http.ResponseWriter has no getter for it.
type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request count and latency per route template,
// so distinct document ids never explode the metric cardinality.
func metricsMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)

		route := r.URL.Path
		if tmpl, err := mux.CurrentRoute(r).GetPathTemplate(); err == nil {
			route = tmpl
		}
		metrics.RecordHTTPRequest(r.Method, route, sw.status, time.Since(start))
	})
}
