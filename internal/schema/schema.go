// Package schema validates the request envelopes that have a fixed shape —
// the collection-creation body and the structured filter tree — against
// JSON Schema documents embedded at build time. It is grounded on the
// teacher's own core/schema package: same Validator shape, same
// gojsonschema dependency, generalized from the teacher's per-service
// embedded schema set to this service's two envelope shapes. The document
// payload itself is never validated here; spec.md's schema-less-payload
// non-goal stays a non-goal.
package schema

import (
	"embed"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// IDs of the two envelopes this service validates.
const (
	CollectionEnvelope = "collection"
	FilterEnvelope      = "filter"
)

// Validator validates a raw JSON document against one of the embedded
// schemas.
type Validator struct {
	compiled map[string]*gojsonschema.Schema
}

// MustLoad compiles the embedded schema set, panicking on malformed JSON
// Schema — a broken schema is a build-time defect, not a request-time one.
func MustLoad() *Validator {
	v, err := load()
	if err != nil {
		panic(err)
	}
	return v
}

func load() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("schema: read embedded schemas: %w", err)
	}
	v := &Validator{compiled: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", entry.Name(), err)
		}
		var probe struct {
			ID string `json:"$id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", entry.Name(), err)
		}
		if probe.ID == "" {
			return nil, fmt.Errorf("schema: %s has no $id", entry.Name())
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("schema: compile %s: %w", probe.ID, err)
		}
		v.compiled[probe.ID] = compiled
	}
	return v, nil
}

// Validate checks raw against the named envelope schema, returning a single
// error describing every violation if it does not conform.
func (v *Validator) Validate(envelope string, raw []byte) error {
	schema, ok := v.compiled[envelope]
	if !ok {
		return fmt.Errorf("schema: unknown envelope %q", envelope)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema: validate against %q: %w", envelope, err)
	}
	if result.Valid() {
		return nil
	}
	msg := fmt.Sprintf("request does not conform to %s", envelope)
	for _, e := range result.Errors() {
		msg += "; " + e.String()
	}
	return fmt.Errorf("%s", msg)
}
