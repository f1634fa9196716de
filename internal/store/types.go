package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/events"
)

// Stage aliases the event applier's stage type; the store persists it but
// the state machine rules that govern its transitions live in
// internal/events.
type Stage = events.Stage

// The three stages a document can be in, re-exported for callers that only
// ever touch the store.
const (
	StageActive        = events.StageActive
	StageDeletedStage1 = events.StageDeletedStage1
	StageDeletedStage2 = events.StageDeletedStage2
)

// Event categories, re-exported so callers that only ever touch the store
// (the façade included) never need to import internal/events directly.
const (
	CategoryOwnership       = events.CategoryOwnership
	CategoryDeleteRequest   = events.CategoryDeleteRequest
	CategoryRecoverRequest  = events.CategoryRecoverRequest
	CategorySystemPromote   = events.CategorySystemPromote
	CategoryLifecycleMarker = events.CategoryLifecycleMarker
)

// Collection is a named container of documents sharing a visibility regime
// and a role namespace.
type Collection struct {
	Name      string
	Title     string
	OAO       bool
	Locked    bool
	CreatedAt time.Time
}

// Document is the current state of one document: metadata plus its opaque
// JSON payload. The event trail is stored separately in Event rows.
type Document struct {
	ID               uuid.UUID
	Collection       string
	OwnerID          uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Title            string
	Payload          json.RawMessage
	Stage            Stage
	DeletionDeadline *time.Time
}

// Event is one append-only entry in a document's audit trail.
type Event struct {
	ID         int64
	DocumentID uuid.UUID
	Category   int
	Payload    json.RawMessage
	TS         time.Time
	Actor      uuid.UUID
}

// RelationReader is the only relation the grant engine currently writes;
// spelled out as a constant because §3 leaves room for more later.
const RelationReader = "reader"

// titleFromPayload extracts the conventional top-level "title" string field,
// the only payload field the store ever looks inside.
func titleFromPayload(payload []byte) string {
	var probe struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.Title
}
