package query

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Operator is a comparison applied by a filter predicate
type Operator string

const (
	Equals     Operator = "equals"
	Contains   Operator = "contains"
	StartsWith Operator = "startsWith"
	EndsWith   Operator = "endsWith"
	Gt         Operator = "gt"
	Gte        Operator = "gte"
	Lt         Operator = "lt"
	Lte        Operator = "lte"
)

var operators = []Operator{Equals, Contains, StartsWith, EndsWith, Gt, Gte, Lt, Lte}

// Operators returns every supported operator
func Operators() []Operator {
	return slices.Clone(operators)
}

// ParseOperator validates an operator directive
func ParseOperator(s string) (Operator, error) {
	for _, op := range operators {
		if string(op) == s {
			return op, nil
		}
	}
	allowed := make([]string, len(operators))
	for i, op := range operators {
		allowed[i] = string(op)
	}
	return "", fmt.Errorf("invalid operator %q, allowed operators are: %s", s, joinList(allowed))
}

// IsPattern reports whether the operator is a substring match
func (o Operator) IsPattern() bool {
	return o == Contains || o == StartsWith || o == EndsWith
}

// Reserved request parameters
const (
	ParamItem     = "item"
	ParamJoin     = "join"
	ParamFields   = "fields"
	ParamPage     = "page"
	ParamPageSize = "pageSize"
	ParamFormat   = "format"

	// OperatorSuffix marks the operator directive for a filter key
	OperatorSuffix = "__op"
)

// Request is the raw, uncompiled form of a query
type Request struct {
	Item      string
	Joins     []string
	Fields    []string
	Filters   map[string]string
	Operators map[string]string
	Page      string
	PageSize  string
	Format    string
}

// ParseValues splits query-string values into a Request
func ParseValues(values url.Values) Request {
	req := Request{
		Item:      strings.TrimSpace(values.Get(ParamItem)),
		Joins:     splitList(values[ParamJoin]),
		Fields:    splitList(values[ParamFields]),
		Filters:   make(map[string]string),
		Operators: make(map[string]string),
		Page:      strings.TrimSpace(values.Get(ParamPage)),
		PageSize:  strings.TrimSpace(values.Get(ParamPageSize)),
		Format:    strings.ToLower(strings.TrimSpace(values.Get(ParamFormat))),
	}

	for key, vals := range values {
		switch key {
		case ParamItem, ParamJoin, ParamFields, ParamPage, ParamPageSize, ParamFormat:
			continue
		}
		if len(vals) == 0 {
			continue
		}
		// Repeated filter keys keep the first value
		value := norm.NFC.String(strings.TrimSpace(vals[0]))
		if value == "" {
			continue
		}
		if base, ok := strings.CutSuffix(key, OperatorSuffix); ok {
			req.Operators[base] = value
			continue
		}
		req.Filters[key] = value
	}

	return req
}

func splitList(raw []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// KeyKind says whether a parameter key targets the entity or one of its joins
type KeyKind int

const (
	DirectKey KeyKind = iota
	JoinScopedKey
)

// Param is a filter or output key after classification against the registry
type Param struct {
	Kind     KeyKind
	Join     string
	Ternary  bool
	Field    string
	Operator Operator
	Value    string
}

// Key rebuilds the request key of the parameter
func (p Param) Key() string {
	if p.Kind == JoinScopedKey {
		return p.Join + "." + p.Field
	}
	return p.Field
}

// splitKey separates "join.field" into its parts; bare keys return an empty join
func splitKey(key string) (join, field string) {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}
