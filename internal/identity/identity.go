// Package identity is the user-info lookup boundary named in spec §6
// (USERDATA_*): it resolves a caller's display name for enriching event
// actor names. It is never consulted for authorization decisions.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Lookup resolves a user id to a display name.
type Lookup interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// HTTPLookup resolves display names against an external identity-provider
// endpoint, GET {baseURL}/{userID} returning {"displayName": "..."}.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLookup builds a Lookup backed by baseURL.
func NewHTTPLookup(baseURL string) *HTTPLookup {
	return &HTTPLookup{baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Second}}
}

// DisplayName fetches and decodes the display name for userID.
func (l *HTTPLookup) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	endpoint := l.baseURL + "/" + url.PathEscape(userID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("identity: build request: %w", err)
	}
	res, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity: lookup %s: %w", userID, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity: lookup %s: status %d", userID, res.StatusCode)
	}

	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("identity: decode response for %s: %w", userID, err)
	}
	return body.DisplayName, nil
}

// NoopLookup is a Lookup that never resolves a name, used when USERDATA_URL
// is not configured.
type NoopLookup struct{}

// DisplayName always returns the empty string.
func (NoopLookup) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	return "", nil
}
