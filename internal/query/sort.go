package query

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/foliva/folivafy/internal/apierr"
)

// SortMode is how one sort term compares its field's values.
type SortMode int

// The four sort suffixes of spec §4.3.3.
const (
	TextAsc SortMode = iota
	TextDesc
	NativeAsc
	NativeDesc
)

// SortTerm is one parsed element of a sort specification.
type SortTerm struct {
	Path string
	Mode SortMode
}

// ParseSort parses a comma-separated sort specification such as
// "geo.edges+,title-" into its terms.
func ParseSort(spec string) ([]SortTerm, error) {
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	terms := make([]SortTerm, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		suffix := part[len(part)-1]
		path := part[:len(part)-1]
		if path != AuthorField && !validFieldPath(path) {
			return nil, apierr.Malformedf("sort: invalid field path %q", path)
		}
		var mode SortMode
		switch suffix {
		case '+':
			mode = TextAsc
		case '-':
			mode = TextDesc
		case 'f':
			mode = NativeAsc
		case 'b':
			mode = NativeDesc
		default:
			return nil, apierr.Malformedf("sort: invalid suffix %q in term %q", string(suffix), part)
		}
		terms = append(terms, SortTerm{Path: path, Mode: mode})
	}
	return terms, nil
}

// sortable is what the sort comparator needs from each candidate: its
// payload (to resolve sort paths), owner id (for the author_id pseudo
// field), and the fixed tie-break columns.
type sortable interface {
	sortPayload() []byte
	sortOwnerID() string
	sortCreatedAtUnixNano() int64
	sortID() string
}

// Order sorts items in place by terms, falling back to the spec's fixed
// tie-break (created_at ascending, then id ascending) so pagination is
// total and stable.
func Order[T sortable](items []T, terms []SortTerm) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, term := range terms {
			a := fieldValue(items[i].sortPayload(), items[i].sortOwnerID(), term.Path)
			b := fieldValue(items[j].sortPayload(), items[j].sortOwnerID(), term.Path)

			// Absent values always sort last, in both ascending and
			// descending modes, so this is decided before the descending
			// flip below rather than folded into compareForSort's result.
			aAbsent := !a.Exists() || a.Type == gjson.Null
			bAbsent := !b.Exists() || b.Type == gjson.Null
			if aAbsent || bAbsent {
				if aAbsent && bAbsent {
					continue
				}
				return !aAbsent
			}

			cmp := compareForSort(a, b, term.Mode)
			if cmp != 0 {
				if term.Mode == TextDesc || term.Mode == NativeDesc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		if items[i].sortCreatedAtUnixNano() != items[j].sortCreatedAtUnixNano() {
			return items[i].sortCreatedAtUnixNano() < items[j].sortCreatedAtUnixNano()
		}
		return items[i].sortID() < items[j].sortID()
	})
}

// compareForSort returns <0, 0, >0 for a vs b under mode. Both a and b are
// guaranteed present; Order handles absent values itself before calling
// this, since their last-place ordering is independent of direction.
func compareForSort(a, b gjson.Result, mode SortMode) int {
	switch mode {
	case TextAsc, TextDesc:
		return strings.Compare(strings.ToLower(a.String()), strings.ToLower(b.String()))
	default:
		return compareNative(a, b)
	}
}

// typeRank orders number < bool < string for native sort (spec §9).
func typeRank(r gjson.Result) int {
	switch r.Type {
	case gjson.Number:
		return 0
	case gjson.True, gjson.False:
		return 1
	default:
		return 2
	}
}

func compareNative(a, b gjson.Result) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return decimal.NewFromFloat(a.Num).Cmp(decimal.NewFromFloat(b.Num))
	case 1:
		if a.Bool() == b.Bool() {
			return 0
		}
		if !a.Bool() {
			return -1
		}
		return 1
	default:
		return strings.Compare(a.String(), b.String())
	}
}
