package query

import (
	"strconv"
	"strings"

	"github.com/foliva/folivafy/internal/apierr"
)

// ParsePFilter compiles one or more compact pfilter clauses (spec §4.3.2)
// into a filter tree. The route accepts the query parameter repeated
// (?pfilter=a=1&pfilter=b=2); each occurrence is one field=value clause,
// and the clauses are AND-ed together — repeating the parameter, rather
// than packing multiple clauses into one value joined by a literal '&',
// keeps every clause a well-formed, independently percent-decoded query
// value.
func ParsePFilter(clauses []string) (Filter, error) {
	if len(clauses) == 0 {
		return Filter{}, nil
	}
	leaves := make([]Filter, 0, len(clauses))
	for _, clause := range clauses {
		leaf, err := parsePFilterClause(clause)
		if err != nil {
			return Filter{}, err
		}
		leaves = append(leaves, leaf)
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return Filter{And: leaves}, nil
}

func parsePFilterClause(clause string) (Filter, error) {
	i := strings.IndexByte(clause, '=')
	if i < 0 {
		return Filter{}, apierr.Malformedf("pfilter: missing '=' in clause %q", clause)
	}
	field, rhs := clause[:i], clause[i+1:]
	if !validFieldPath(field) {
		return Filter{}, apierr.Malformedf("pfilter: invalid field path %q", field)
	}

	switch {
	case strings.HasPrefix(rhs, "~'"):
		lit, err := unquote(rhs[1:])
		if err != nil {
			return Filter{}, err
		}
		return Filter{F: field, O: OpContainsText, V: lit}, nil
	case strings.HasPrefix(rhs, "@'"):
		lit, err := unquote(rhs[1:])
		if err != nil {
			return Filter{}, err
		}
		return Filter{F: field, O: OpStartsWith, V: lit}, nil
	case strings.HasPrefix(rhs, "["):
		values, err := parseList(rhs)
		if err != nil {
			return Filter{}, err
		}
		return Filter{F: field, O: OpIn, V: values}, nil
	case strings.HasPrefix(rhs, "'"):
		lit, err := unquote(rhs)
		if err != nil {
			return Filter{}, err
		}
		return Filter{F: field, O: OpEq, V: lit}, nil
	default:
		n, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return Filter{}, apierr.Malformedf("pfilter: %q is neither a quoted literal nor a number", rhs)
		}
		return Filter{F: field, O: OpEq, V: n}, nil
	}
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", apierr.Malformedf("pfilter: unterminated literal %q", s)
	}
	return s[1 : len(s)-1], nil
}

func parseList(s string) ([]interface{}, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, apierr.Malformedf("pfilter: malformed list %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 2 && p[0] == '\'' && p[len(p)-1] == '\'' {
			out = append(out, p[1:len(p)-1])
			continue
		}
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, apierr.Malformedf("pfilter: %q is neither a quoted literal nor a number", p)
		}
		out = append(out, n)
	}
	return out, nil
}
