// Package query is the search subsystem: the filter tree and its compact
// pfilter dialect, nested-field sort, extra-field projection, and the
// visibility predicate that gates all of it. SQL pushes down only the
// coarse collection/stage/owner restriction (see store.FetchCandidates);
// everything else here runs over the decoded JSON payload in Go, because
// "absent compares false under every operator including ne" has no clean
// single-predicate SQL translation.
package query

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/foliva/folivafy/internal/apierr"
)

// AuthorField is the pseudo-field that addresses a document's owner_id
// rather than a payload path, in both filter and projection contexts.
const AuthorField = "author_id"

// Comparison operators a filter leaf may use.
const (
	OpEq           = "eq"
	OpNe           = "ne"
	OpLt           = "lt"
	OpLe           = "le"
	OpGt           = "gt"
	OpGe           = "ge"
	OpStartsWith   = "startswith"
	OpContainsText = "containstext"
	OpIn           = "in"
	OpNull         = "null"
	OpNotNull      = "notnull"
)

// Filter is one node of the filter tree: either an And/Or group or a leaf
// comparing field F with operator O against value V (V is unused for
// null/notnull).
type Filter struct {
	And []Filter    `json:"and,omitempty"`
	Or  []Filter    `json:"or,omitempty"`
	F   string      `json:"f,omitempty"`
	O   string      `json:"o,omitempty"`
	V   interface{} `json:"v,omitempty"`
}

// Validate checks that a parsed filter tree only uses the grammar in spec
// §4.3.1, so a malformed request is rejected before it ever touches a
// document.
func (f Filter) Validate() error {
	if f.And != nil {
		for _, child := range f.And {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if f.Or != nil {
		for _, child := range f.Or {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if f.F == "" {
		return apierr.Malformedf("filter: missing field path")
	}
	if !validFieldPath(f.F) {
		return apierr.Malformedf("filter: invalid field path %q", f.F)
	}
	switch f.O {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpStartsWith, OpContainsText, OpIn:
		if f.V == nil {
			return apierr.Malformedf("filter: operator %q requires a value", f.O)
		}
		if f.O == OpIn {
			if _, ok := f.V.([]interface{}); !ok {
				return apierr.Malformedf("filter: operator in requires an array value")
			}
		}
		return nil
	case OpNull, OpNotNull:
		return nil
	default:
		return apierr.Malformedf("filter: unknown operator %q", f.O)
	}
}

func validFieldPath(path string) bool {
	if path == AuthorField {
		return true
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
	}
	return true
}

// Evaluate reports whether document (payload, ownerID) matches f. A
// zero-value Filter (no group, no field) represents "no filter given" and
// matches everything.
func (f Filter) Evaluate(payload []byte, ownerID string) bool {
	if f.And == nil && f.Or == nil && f.F == "" {
		return true
	}
	if f.And != nil {
		for _, child := range f.And {
			if !child.Evaluate(payload, ownerID) {
				return false
			}
		}
		return true
	}
	if f.Or != nil {
		if len(f.Or) == 0 {
			return true
		}
		for _, child := range f.Or {
			if child.Evaluate(payload, ownerID) {
				return true
			}
		}
		return false
	}
	return evaluateLeaf(fieldValue(payload, ownerID, f.F), f.O, f.V)
}

// fieldValue resolves a field path against a document, special-casing
// author_id to the owner id rather than a payload lookup.
func fieldValue(payload []byte, ownerID, path string) gjson.Result {
	if path == AuthorField {
		return gjson.Parse(`"` + ownerID + `"`)
	}
	return gjson.GetBytes(payload, path)
}

func evaluateLeaf(field gjson.Result, op string, v interface{}) bool {
	switch op {
	case OpNull:
		return !field.Exists() || field.Type == gjson.Null
	case OpNotNull:
		return field.Exists() && field.Type != gjson.Null
	}
	if !field.Exists() || field.Type == gjson.Null {
		// Absent compares false under every value operator, ne included.
		return false
	}
	switch op {
	case OpEq:
		return typeStrictEqual(field, v)
	case OpNe:
		return !typeStrictEqual(field, v)
	case OpLt, OpLe, OpGt, OpGe:
		return numericCompare(field, op, v)
	case OpStartsWith:
		s, ok := v.(string)
		if !ok || field.Type != gjson.String {
			return false
		}
		return strings.HasPrefix(strings.ToLower(field.Str), strings.ToLower(s))
	case OpContainsText:
		s, ok := v.(string)
		if !ok || field.Type != gjson.String {
			return false
		}
		return strings.Contains(strings.ToLower(field.Str), strings.ToLower(s))
	case OpIn:
		values, ok := v.([]interface{})
		if !ok {
			return false
		}
		for _, candidate := range values {
			if typeStrictEqual(field, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// typeStrictEqual compares field against a decoded JSON value v with no
// coercion: "3" never equals 3 (spec §4.3.1).
func typeStrictEqual(field gjson.Result, v interface{}) bool {
	switch val := v.(type) {
	case string:
		return field.Type == gjson.String && field.Str == val
	case bool:
		return (field.Type == gjson.True || field.Type == gjson.False) && field.Bool() == val
	case float64:
		return field.Type == gjson.Number && decimal.NewFromFloat(field.Num).Equal(decimal.NewFromFloat(val))
	default:
		return false
	}
}

// numericCompare implements lt/le/gt/ge: both sides must be JSON numbers or
// the comparison is false, never an error (spec §4.3.1). Uses decimal
// rather than raw float64 comparison to avoid round-off on values close to
// a boundary.
func numericCompare(field gjson.Result, op string, v interface{}) bool {
	if field.Type != gjson.Number {
		return false
	}
	target, ok := v.(float64)
	if !ok {
		return false
	}
	a := decimal.NewFromFloat(field.Num)
	b := decimal.NewFromFloat(target)
	switch op {
	case OpLt:
		return a.LessThan(b)
	case OpLe:
		return a.LessThanOrEqual(b)
	case OpGt:
		return a.GreaterThan(b)
	case OpGe:
		return a.GreaterThanOrEqual(b)
	default:
		return false
	}
}
