package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/openfda-api/query"
	"github.com/giygas/openfda-api/registry"
)

// ErrUnsupportedItem is returned for an entity the schema has no model for
var ErrUnsupportedItem = errors.New("unsupported item")

var comparisons = map[query.Operator]string{
	query.Gt:  ">",
	query.Gte: ">=",
	query.Lt:  "<",
	query.Lte: "<=",
}

// builder renders one statement. Placeholders are written as ? and
// rebound by sqlx for the target driver.
type builder struct {
	schema  *Schema
	dialect Dialect
	args    []any
	aliases int
}

func newBuilder(schema *Schema, dialect Dialect) *builder {
	return &builder{schema: schema, dialect: dialect}
}

func (b *builder) alias() string {
	b.aliases++
	return fmt.Sprintf("t%d", b.aliases)
}

// find renders a statement returning one JSON document per matching row
func (b *builder) find(entity string, where, sel *query.Node, limit, offset int) (string, []any, error) {
	m, ok := b.schema.Model(entity)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedItem, entity)
	}

	const root = "t0"
	doc, err := b.object(m, root, sel)
	if err != nil {
		return "", nil, err
	}
	cond, err := b.where(m, root, where)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS doc FROM %s %s", doc, m.Table, root)
	if cond != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(cond)
	}
	fmt.Fprintf(&sb, " ORDER BY %s.%s LIMIT ? OFFSET ?", root, m.PrimaryKey)
	b.args = append(b.args, limit, offset)

	return sb.String(), b.args, nil
}

// object renders the JSON document of model m at alias a. A nil, leaf or
// empty selection selects every column and no relation.
func (b *builder) object(m *Model, a string, sel *query.Node) (string, error) {
	var pairs []string

	if sel == nil || sel.IsLeaf() || sel.Len() == 0 {
		for _, c := range m.Columns {
			pairs = append(pairs, pair(c.Field, a+"."+c.Name))
		}
		return b.dialect.Object(pairs), nil
	}

	for _, key := range sel.Keys() {
		child := sel.Child(key)
		if child.IsLeaf() && child.Value() == false {
			continue
		}
		if c, ok := m.Column(key); ok {
			pairs = append(pairs, pair(key, a+"."+c.Name))
			continue
		}
		rel, ok := m.Relation(key)
		if !ok {
			return "", fmt.Errorf("%s has no field or relation %q", m.Name, key)
		}
		var nested *query.Node
		if !child.IsLeaf() {
			nested = child.Child(query.SelectKey)
		}
		expr, err := b.related(a, rel, nested)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, pair(key, expr))
	}

	return b.dialect.Object(pairs), nil
}

func (b *builder) related(a string, rel Relation, sel *query.Node) (string, error) {
	target, ok := b.schema.Model(rel.Target)
	if !ok {
		return "", fmt.Errorf("relation %q targets unknown model %q", rel.Name, rel.Target)
	}
	t := b.alias()
	obj, err := b.object(target, t, sel)
	if err != nil {
		return "", err
	}
	from, on := b.source(a, rel, target, t)

	if !rel.Many() {
		return b.dialect.One(fmt.Sprintf("SELECT %s FROM %s WHERE %s", obj, from, on)), nil
	}
	return b.dialect.Many(obj, from, on, t+"."+target.PrimaryKey), nil
}

// source returns the FROM clause for the target of rel and the condition
// correlating it with the row at alias a
func (b *builder) source(a string, rel Relation, target *Model, t string) (from, on string) {
	if rel.Kind == ManyToMany {
		l := "l" + strings.TrimPrefix(t, "t")
		from = fmt.Sprintf("%s %s JOIN %s %s ON %s.%s = %s.%s",
			target.Table, t, rel.LinkTable, l, l, rel.LinkForeign, t, rel.ForeignKey)
		on = fmt.Sprintf("%s.%s = %s.%s", l, rel.LinkLocal, a, rel.LocalKey)
		return from, on
	}
	return target.Table + " " + t, fmt.Sprintf("%s.%s = %s.%s", t, rel.ForeignKey, a, rel.LocalKey)
}

// where renders the filter tree of model m at alias a, "" when it is empty
func (b *builder) where(m *Model, a string, n *query.Node) (string, error) {
	if n == nil || n.IsLeaf() || n.Len() == 0 {
		return "", nil
	}

	var conds []string
	for _, key := range n.Keys() {
		child := n.Child(key)
		if c, ok := m.Column(key); ok {
			cond, err := b.compare(a+"."+c.Name, c.Kind, child)
			if err != nil {
				return "", fmt.Errorf("%s.%s: %w", m.Name, key, err)
			}
			conds = append(conds, cond)
			continue
		}
		rel, ok := m.Relation(key)
		if !ok {
			return "", fmt.Errorf("%s has no field or relation %q", m.Name, key)
		}
		cond, err := b.relationFilter(a, rel, child)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}

	return strings.Join(conds, " AND "), nil
}

func (b *builder) relationFilter(a string, rel Relation, n *query.Node) (string, error) {
	if n.IsLeaf() {
		return "", fmt.Errorf("filter on relation %q must be an object", rel.Name)
	}
	if !rel.Many() {
		return b.quantified(a, rel, query.Some, n)
	}

	var conds []string
	implicit := query.Group()
	for _, key := range n.Keys() {
		switch key {
		case query.Every, query.Some, query.None:
			cond, err := b.quantified(a, rel, key, n.Child(key))
			if err != nil {
				return "", err
			}
			conds = append(conds, cond)
		default:
			implicit.Set(key, n.Child(key))
		}
	}
	if implicit.Len() > 0 {
		cond, err := b.quantified(a, rel, query.Some, implicit)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}

	return strings.Join(conds, " AND "), nil
}

// quantified renders some/every/none over the rows reached through rel.
// every holds vacuously when no row is linked.
func (b *builder) quantified(a string, rel Relation, q string, n *query.Node) (string, error) {
	target, ok := b.schema.Model(rel.Target)
	if !ok {
		return "", fmt.Errorf("relation %q targets unknown model %q", rel.Name, rel.Target)
	}
	t := b.alias()
	from, on := b.source(a, rel, target, t)
	inner, err := b.where(target, t, n)
	if err != nil {
		return "", err
	}

	switch q {
	case query.Some:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s AND %s)", from, on, b.orTrue(inner)), nil
	case query.None:
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s AND %s)", from, on, b.orTrue(inner)), nil
	case query.Every:
		if inner == "" {
			return b.dialect.True(), nil
		}
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s AND NOT COALESCE((%s), %s))",
			from, on, inner, b.dialect.False()), nil
	default:
		return "", fmt.Errorf("unknown quantifier %q", q)
	}
}

func (b *builder) orTrue(cond string) string {
	if cond == "" {
		return b.dialect.True()
	}
	return cond
}

// compare renders one predicate on column expression expr
func (b *builder) compare(expr string, kind registry.FieldKind, n *query.Node) (string, error) {
	if !n.IsLeaf() {
		return "", errors.New("expected a condition")
	}
	cond, ok := n.Value().(query.Condition)
	if !ok {
		cond = query.Condition{Op: query.Equals, Value: n.Value()}
	}

	switch {
	case cond.Op.IsPattern():
		target := expr
		if kind != registry.Text {
			target = b.dialect.CastText(expr)
		}
		b.args = append(b.args, likePattern(cond.Op, fmt.Sprint(cond.Value)))
		if cond.Insensitive {
			return b.dialect.ILike(target), nil
		}
		return target + ` LIKE ? ESCAPE '\'`, nil

	case cond.Op == query.Equals:
		if cond.Value == nil {
			return expr + " IS NULL", nil
		}
		b.args = append(b.args, cond.Value)
		if cond.Insensitive {
			return b.dialect.Lower(expr) + " = " + b.dialect.Lower("?"), nil
		}
		return expr + " = " + b.placeholder(kind), nil

	default:
		sym, ok := comparisons[cond.Op]
		if !ok {
			return "", fmt.Errorf("unsupported operator %q", cond.Op)
		}
		b.args = append(b.args, cond.Value)
		return expr + " " + sym + " " + b.placeholder(kind), nil
	}
}

func (b *builder) placeholder(kind registry.FieldKind) string {
	if kind == registry.Number {
		return b.dialect.Number()
	}
	return "?"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(op query.Operator, value string) string {
	v := likeEscaper.Replace(value)
	switch op {
	case query.StartsWith:
		return v + "%"
	case query.EndsWith:
		return "%" + v
	default:
		return "%" + v + "%"
	}
}

func pair(key, expr string) string {
	return "'" + strings.ReplaceAll(key, "'", "''") + "', " + expr
}
