package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"

	"github.com/foliva/folivafy/internal/authn"
	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/identity"
	"github.com/foliva/folivafy/internal/schema"
	"github.com/foliva/folivafy/internal/store"
)

type testConfig struct {
	DataSource string `env:"FOLIVAFY_TEST_DATABASE,required"`
}

const (
	testIssuer = "https://folivafy.example/"
	testSecret = "httpapi-test-secret"
)

var testServer *httptest.Server

func TestMain(m *testing.M) {
	var cfg testConfig
	if err := envdecode.Decode(&cfg); err != nil {
		panic(err)
	}
	db := store.Open(cfg.DataSource, "_folivafy_httpapi_test_")
	db.ClearSchema()
	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		panic(err)
	}
	facade := collection.New(st, grants.New(st), map[string]config.DeletionPolicy{}, nil)

	verifier := authn.NewVerifier(testIssuer, testSecret)
	validator := schema.MustLoad()
	router := New(facade, verifier, validator, identity.NoopLookup{}).Router()

	testServer = httptest.NewServer(router)
	defer testServer.Close()
	os.Exit(m.Run())
}

func tokenFor(t *testing.T, subject uuid.UUID, roles []string) string {
	t.Helper()
	claims := authn.Claims{
		Roles: roles,
		StandardClaims: jwt.StandardClaims{
			Issuer:  testIssuer,
			Subject: subject.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, testServer.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestCreateCollection_RequiresAuthentication(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/collections", "", `{"name":"unauth","title":"Unauth"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", resp.StatusCode)
	}
}

func TestCreateCollection_PlatformAdmin(t *testing.T) {
	admin := tokenFor(t, uuid.New(), []string{"A_FOLIVAFY_COLLECTION_EDITOR"})
	resp := doRequest(t, http.MethodPost, "/api/collections", admin, `{"name":"widgets","title":"Widgets"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got status %d, want 201", resp.StatusCode)
	}
}

func TestCreateCollection_RejectsMalformedEnvelope(t *testing.T) {
	admin := tokenFor(t, uuid.New(), []string{"A_FOLIVAFY_COLLECTION_EDITOR"})
	resp := doRequest(t, http.MethodPost, "/api/collections", admin, `{"name":"Widgets"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400 for a missing title and uppercase name", resp.StatusCode)
	}
}

func TestInsertAndGetDocument_RoundTrip(t *testing.T) {
	admin := tokenFor(t, uuid.New(), []string{"A_FOLIVAFY_COLLECTION_EDITOR"})
	resp := doRequest(t, http.MethodPost, "/api/collections", admin, `{"name":"gadgets","title":"Gadgets"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create collection: got status %d", resp.StatusCode)
	}

	owner := uuid.New()
	editorToken := tokenFor(t, owner, []string{"C_GADGETS_EDITOR", "C_GADGETS_READER"})
	docID := uuid.New()
	insertBody := `{"id":"` + docID.String() + `","f":{"title":"a gadget"}}`
	resp = doRequest(t, http.MethodPost, "/api/collections/gadgets", editorToken, insertBody)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("insert document: got status %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, "/api/collections/gadgets/"+docID.String(), editorToken, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get document: got status %d", resp.StatusCode)
	}
}

func TestGetDocument_UnauthenticatedIsRejected(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/collections/gadgets/"+uuid.New().String(), "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", resp.StatusCode)
	}
}

func TestListCollections_NonAdminIsRejected(t *testing.T) {
	plain := tokenFor(t, uuid.New(), []string{"C_GADGETS_READER"})
	resp := doRequest(t, http.MethodGet, "/api/collections", plain, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401 since this caller holds no platform-admin role", resp.StatusCode)
	}
}

func TestGetDocument_IfNoneMatchReturnsNotModified(t *testing.T) {
	admin := tokenFor(t, uuid.New(), []string{"A_FOLIVAFY_COLLECTION_EDITOR"})
	resp := doRequest(t, http.MethodPost, "/api/collections", admin, `{"name":"etags","title":"Etags"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create collection: got status %d", resp.StatusCode)
	}

	owner := uuid.New()
	editorToken := tokenFor(t, owner, []string{"C_ETAGS_EDITOR", "C_ETAGS_READER"})
	docID := uuid.New()
	insertBody := `{"id":"` + docID.String() + `","f":{"title":"an etagged gadget"}}`
	resp = doRequest(t, http.MethodPost, "/api/collections/etags", editorToken, insertBody)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("insert document: got status %d", resp.StatusCode)
	}

	first := doRequest(t, http.MethodGet, "/api/collections/etags/"+docID.String(), editorToken, "")
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("get document: got status %d", first.StatusCode)
	}
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected a non-empty ETag header")
	}

	req, err := http.NewRequest(http.MethodGet, testServer.URL+"/api/collections/etags/"+docID.String(), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+editorToken)
	req.Header.Set("If-None-Match", etag)
	second, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer second.Body.Close()
	if second.StatusCode != http.StatusNotModified {
		t.Fatalf("got status %d, want 304 when If-None-Match matches the current ETag", second.StatusCode)
	}
}

func TestSearchDocuments_IfNoneMatchReturnsNotModified(t *testing.T) {
	admin := tokenFor(t, uuid.New(), []string{"A_FOLIVAFY_COLLECTION_EDITOR"})
	resp := doRequest(t, http.MethodPost, "/api/collections", admin, `{"name":"etag-search","title":"Etag Search"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create collection: got status %d", resp.StatusCode)
	}

	owner := uuid.New()
	editorToken := tokenFor(t, owner, []string{"C_ETAG-SEARCH_EDITOR", "C_ETAG-SEARCH_READER"})
	insertBody := `{"id":"` + uuid.New().String() + `","f":{"title":"searchable"}}`
	resp = doRequest(t, http.MethodPost, "/api/collections/etag-search", editorToken, insertBody)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("insert document: got status %d", resp.StatusCode)
	}

	first := doRequest(t, http.MethodGet, "/api/collections/etag-search", editorToken, "")
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("search: got status %d", first.StatusCode)
	}
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected a non-empty ETag header on a search result")
	}

	req, err := http.NewRequest(http.MethodGet, testServer.URL+"/api/collections/etag-search", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+editorToken)
	req.Header.Set("If-None-Match", etag)
	second, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer second.Body.Close()
	if second.StatusCode != http.StatusNotModified {
		t.Fatalf("got status %d, want 304 when If-None-Match matches the current search ETag", second.StatusCode)
	}
}
