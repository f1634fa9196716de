// Package authn is the bearer-token boundary: it turns an incoming
// "Authorization: Bearer <token>" header into a collection.Principal. It
// validates the token's issuer and signature and trusts its "roles" and
// "sub" claims; it never itself decides what a role may do — that is
// internal/authz's job once a Principal exists.
package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/foliva/folivafy/internal/collection"
)

// Claims is the token body this service understands: a subject (the
// caller's user id) and a role list, matching the role grammar of
// internal/authz.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.StandardClaims
}

// Verifier validates bearer tokens against one fixed issuer and secret. It
// is intentionally static: no JWKS refresh, no multi-issuer list, matching
// the single-tenant deployment spec §6 describes.
type Verifier struct {
	issuer string
	secret []byte
}

// NewVerifier builds a Verifier for one issuer/secret pair.
func NewVerifier(issuer, secret string) *Verifier {
	return &Verifier{issuer: issuer, secret: []byte(secret)}
}

// Authenticate parses and validates the bearer token carried by r, returning
// the resolved Principal. It returns false if no token is present or the
// token fails validation; callers must treat that as Unauthorized.
func (v *Verifier) Authenticate(r *http.Request) (collection.Principal, bool) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		return collection.Principal{}, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return collection.Principal{}, false
	}
	if claims.Issuer != v.issuer {
		return collection.Principal{}, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return collection.Principal{}, false
	}
	return collection.Principal{ID: id, Roles: claims.Roles}, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return header
}

// contextKey is the type for this package's single context key, following
// the pattern internal/logger uses for its own request-scoped values.
type contextKey struct{}

var principalKey = contextKey{}

// ContextWithPrincipal attaches p to ctx.
func ContextWithPrincipal(ctx context.Context, p collection.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the Principal attached by ContextWithPrincipal.
func PrincipalFromContext(ctx context.Context) (collection.Principal, bool) {
	p, ok := ctx.Value(principalKey).(collection.Principal)
	return p, ok
}
