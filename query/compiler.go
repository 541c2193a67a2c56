// Package query compiles flat request parameters into a filter tree, a
// projection tree and paging bounds, validated against the field registry.
package query

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/giygas/openfda-api/registry"
)

// Paging defaults used when Options leaves them unset
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	maxPage         = 1_000_000
)

// Options tunes the compiler
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	// Strict rejects unknown filter and output fields instead of ignoring them
	Strict bool
}

// Compiled is the output of the compiler, consumed by the store executor
type Compiled struct {
	Entity   string
	Where    *Node
	Select   *Node
	Limit    int
	Offset   int
	Warnings []string
}

// Compiler turns a Request into a Compiled query
type Compiler struct {
	registry *registry.Registry
	opts     Options
}

// NewCompiler creates a compiler bound to a registry
func NewCompiler(reg *registry.Registry, opts Options) *Compiler {
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	return &Compiler{registry: reg, opts: opts}
}

// Registry returns the registry the compiler validates against
func (c *Compiler) Registry() *registry.Registry {
	return c.registry
}

// classified is a Param together with the registry entries it resolved to
type classified struct {
	param Param
	field registry.Field
	join  registry.Join
}

// Compile validates req and builds the filter and projection trees
func (c *Compiler) Compile(req Request) (*Compiled, error) {
	entity, ok := c.registry.Entity(req.Item)
	if !ok {
		names := c.registry.Names()
		e := badRequest(ReasonItem, "Invalid or missing item parameter. Allowed items are: "+joinList(names))
		if req.Item != "" {
			e.Invalid = []string{req.Item}
		}
		e.Allowed = names
		return nil, e
	}

	if err := validateJoins(entity, req.Joins); err != nil {
		return nil, err
	}

	out := &Compiled{Entity: entity.Name}
	var unknown []string

	where, rejected, err := c.buildWhere(entity, req, out)
	if err != nil {
		return nil, err
	}
	unknown = append(unknown, rejected...)

	sel, rejected := c.buildSelect(entity, req, out)
	unknown = append(unknown, rejected...)

	if c.opts.Strict && len(unknown) > 0 {
		allowed := c.allowedKeys(entity)
		e := badRequest(ReasonField, fmt.Sprintf("Invalid parameters for %s: %s. Allowed fields are: %s",
			entity.Name, joinList(unknown), joinList(allowed)))
		e.Invalid = unknown
		e.Allowed = allowed
		return nil, e
	}

	out.Where = where
	out.Select = sel
	out.Limit, out.Offset = c.paging(req.Page, req.PageSize)
	return out, nil
}

func validateJoins(entity *registry.Entity, joins []string) error {
	var invalid []string
	for _, name := range joins {
		if _, ok := entity.Join(name); !ok {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	allowed := entity.JoinNames()
	allowedMsg := joinList(allowed)
	if allowedMsg == "" {
		allowedMsg = "none"
	}
	e := badRequest(ReasonJoin, fmt.Sprintf("Invalid joins for %s: %s. Allowed joins are: %s",
		entity.Name, joinList(invalid), allowedMsg))
	e.Invalid = invalid
	e.Allowed = allowed
	return e
}

// classify resolves a bare or dotted key against the entity
func (c *Compiler) classify(entity *registry.Entity, key string) (classified, error) {
	joinName, fieldName := splitKey(key)
	if joinName == "" {
		f, ok := entity.Field(fieldName)
		if !ok {
			return classified{}, fmt.Errorf("unknown field %q for %s", key, entity.Name)
		}
		return classified{param: Param{Kind: DirectKey, Field: fieldName}, field: f}, nil
	}

	j, err := c.registry.Resolve(entity.Name, joinName)
	if err != nil {
		return classified{}, fmt.Errorf("%q: %w", key, err)
	}
	target, ok := c.registry.Entity(j.Target)
	if !ok {
		return classified{}, fmt.Errorf("join %q targets unknown entity %q", joinName, j.Target)
	}
	f, ok := target.Field(fieldName)
	if !ok {
		return classified{}, fmt.Errorf("unknown field %q for %s", key, entity.Name)
	}

	return classified{
		param: Param{Kind: JoinScopedKey, Join: j.Name, Ternary: j.IsTernary(), Field: fieldName},
		field: f,
		join:  j,
	}, nil
}

func (c *Compiler) buildWhere(entity *registry.Entity, req Request, out *Compiled) (*Node, []string, error) {
	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var unknown []string
	where := Group()

	for _, key := range keys {
		cl, err := c.classify(entity, key)
		if err != nil {
			unknown = append(unknown, key)
			out.Warnings = append(out.Warnings, "ignored filter: "+err.Error())
			continue
		}

		p := cl.param
		p.Value = req.Filters[key]
		if raw, ok := req.Operators[key]; ok {
			op, err := ParseOperator(raw)
			if err != nil {
				e := badRequest(ReasonOperator, fmt.Sprintf("%s: %v", key, err))
				e.Invalid = []string{raw}
				return nil, nil, e
			}
			p.Operator = op
		} else {
			p.Operator = defaultOperator(cl.field.Kind)
		}

		cond, err := condition(p, cl.field)
		if err != nil {
			return nil, nil, err
		}

		leaf := Leaf(cond)
		switch {
		case p.Kind == DirectKey:
			where.Set(p.Field, leaf)
		case !p.Ternary:
			where.Set(cl.join.Relation, Path(leaf, p.Field))
		default:
			where.Set(cl.join.Relation, Path(leaf, Every, cl.join.Pointer, p.Field))
		}
	}

	for key := range req.Operators {
		if _, ok := req.Filters[key]; !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("ignored operator for %q: no filter value", key))
		}
	}

	return where, unknown, nil
}

func (c *Compiler) buildSelect(entity *registry.Entity, req Request, out *Compiled) (*Node, []string) {
	var unknown []string
	sel := Group()
	bare := false

	for _, key := range req.Fields {
		cl, err := c.classify(entity, key)
		if err != nil {
			unknown = append(unknown, key)
			out.Warnings = append(out.Warnings, "ignored output field: "+err.Error())
			continue
		}

		p := cl.param
		switch {
		case p.Kind == DirectKey:
			sel.Set(p.Field, Leaf(true))
			bare = true
		case !p.Ternary:
			sel.Set(cl.join.Relation, Path(Leaf(true), SelectKey, p.Field))
		default:
			sel.Set(cl.join.Relation, Path(Leaf(true), SelectKey, cl.join.Pointer, SelectKey, p.Field))
		}
	}

	if !bare {
		base := Group()
		for _, f := range entity.Fields {
			base.Set(f.Name, Leaf(true))
		}
		sel = Merge(base, sel)
	}

	for _, name := range req.Joins {
		j, _ := entity.Join(name)
		if j.IsTernary() {
			sel.Set(j.Relation, Path(Leaf(true), SelectKey, j.Pointer))
		} else {
			sel.Set(j.Relation, Leaf(true))
		}
	}

	return sel, unknown
}

func (c *Compiler) allowedKeys(entity *registry.Entity) []string {
	allowed := entity.FieldNames()
	for _, j := range entity.Joins {
		target, ok := c.registry.Entity(j.Target)
		if !ok {
			continue
		}
		for _, f := range target.Fields {
			allowed = append(allowed, j.Name+"."+f.Name)
		}
	}
	return allowed
}

func (c *Compiler) paging(pageRaw, sizeRaw string) (limit, offset int) {
	size, err := strconv.Atoi(sizeRaw)
	if err != nil || size < 1 {
		size = c.opts.DefaultPageSize
	}
	if size > c.opts.MaxPageSize {
		size = c.opts.MaxPageSize
	}

	page, err := strconv.Atoi(pageRaw)
	if err != nil || page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}

	return size, (page - 1) * size
}

func defaultOperator(kind registry.FieldKind) Operator {
	if kind == registry.Text {
		return Contains
	}
	return Equals
}

// condition coerces the raw value for the field kind
func condition(p Param, f registry.Field) (Condition, error) {
	if p.Operator.IsPattern() {
		return Condition{Op: p.Operator, Value: p.Value, Insensitive: true}, nil
	}

	switch f.Kind {
	case registry.Number:
		n, err := parseNumber(p.Value)
		if err != nil {
			e := badRequest(ReasonValue, fmt.Sprintf("Invalid numeric value for %s: %q", p.Key(), p.Value))
			e.Invalid = []string{p.Value}
			return Condition{}, e
		}
		return Condition{Op: p.Operator, Value: n}, nil
	case registry.Date:
		d, err := parseDate(p.Value)
		if err != nil {
			e := badRequest(ReasonValue, fmt.Sprintf("Invalid date value for %s: %q (expected YYYY-MM-DD or DD/MM/YYYY)", p.Key(), p.Value))
			e.Invalid = []string{p.Value}
			return Condition{}, e
		}
		return Condition{Op: p.Operator, Value: d}, nil
	default:
		return Condition{Op: p.Operator, Value: p.Value}, nil
	}
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number: %s", s)
	}
	return f, nil
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "20060102", time.RFC3339}

func parseDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}
