// Package mapper flattens nested query results into the tabular rows the UI
// and the CSV export consume.
package mapper

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/giygas/openfda-api/registry"
)

// Reshaper rewrites one nested row of an entity before flattening
type Reshaper func(row map[string]any) map[string]any

// Mapper turns nested rows into flat rows keyed by dotted column names
type Mapper struct {
	registry  *registry.Registry
	reshapers map[string]Reshaper
}

// New returns a mapper with the entity reshapers of the drug API
func New(reg *registry.Registry) *Mapper {
	m := &Mapper{registry: reg, reshapers: make(map[string]Reshaper)}
	m.Register(registry.Shortages, formatPostingDate)
	m.Register(registry.Report, joinAdverseReactions)
	return m
}

// Register sets the reshaper of an entity
func (m *Mapper) Register(entity string, fn Reshaper) {
	m.reshapers[entity] = fn
}

// Map flattens rows of entity. To-one objects become dotted keys; every
// array-valued join is expanded on its own (one output row per element) and
// the expansions are concatenated. A row without any non-empty array is
// emitted once.
func (m *Mapper) Map(entity string, rows []map[string]any) []map[string]any {
	e, _ := m.registry.Entity(entity)
	reshape := m.reshapers[entity]

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if reshape != nil {
			row = reshape(row)
		}
		out = append(out, m.flatten(e, row)...)
	}
	return out
}

type expansion struct {
	prefix string
	items  []map[string]any
}

func (m *Mapper) flatten(e *registry.Entity, row map[string]any) []map[string]any {
	base := make(map[string]any, len(row))
	var arrays []expansion

	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		switch v := row[key].(type) {
		case map[string]any:
			flattenObject(base, columnPrefix(e, key), v)
		case []any:
			exp := expansion{prefix: columnPrefix(e, key)}
			pointer := ternaryPointer(e, key)
			for _, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if pointer != "" {
					if target, ok := obj[pointer].(map[string]any); ok {
						obj = target
					}
				}
				flat := make(map[string]any, len(obj))
				flattenObject(flat, exp.prefix, obj)
				exp.items = append(exp.items, flat)
			}
			if len(exp.items) > 0 {
				arrays = append(arrays, exp)
			}
		default:
			base[key] = v
		}
	}

	if len(arrays) == 0 {
		return []map[string]any{base}
	}

	var out []map[string]any
	for _, exp := range arrays {
		for _, item := range exp.items {
			r := maps.Clone(base)
			maps.Copy(r, item)
			out = append(out, r)
		}
	}
	return out
}

// flattenObject writes obj into dst under prefix. Nested arrays are
// summarised by their length since they cannot fan out a second time.
func flattenObject(dst map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := prefix + "." + k
		switch v := v.(type) {
		case map[string]any:
			flattenObject(dst, key, v)
		case []any:
			dst[key+".count"] = len(v)
		default:
			dst[key] = v
		}
	}
}

// columnPrefix names the columns of a relation after the join that exposes it
func columnPrefix(e *registry.Entity, relation string) string {
	if e != nil {
		if j, ok := e.JoinByRelation(relation); ok {
			return j.Name
		}
	}
	return relation
}

func ternaryPointer(e *registry.Entity, relation string) string {
	if e == nil {
		return ""
	}
	if j, ok := e.JoinByRelation(relation); ok && j.IsTernary() {
		return j.Pointer
	}
	return ""
}

// Columns returns the column order for tabular output: the base fields of
// entity in registry order, then every other key sorted
func (m *Mapper) Columns(entity string, rows []map[string]any) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}

	var cols []string
	if e, ok := m.registry.Entity(entity); ok {
		for _, f := range e.Fields {
			if seen[f.Name] {
				cols = append(cols, f.Name)
				delete(seen, f.Name)
			}
		}
	}

	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	slices.Sort(rest)
	return append(cols, rest...)
}

var postingDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// formatPostingDate renders initialPostingDate as DD/MM/YYYY
func formatPostingDate(row map[string]any) map[string]any {
	raw, ok := row["initialPostingDate"].(string)
	if !ok {
		return row
	}
	for _, layout := range postingDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			out := maps.Clone(row)
			out["initialPostingDate"] = t.UTC().Format("02/01/2006")
			return out
		}
	}
	return row
}

// joinAdverseReactions collapses the linked adverse reactions of a report
// into one comma separated name column
func joinAdverseReactions(row map[string]any) map[string]any {
	links, ok := row["adverseReactions"].([]any)
	if !ok {
		return row
	}

	names := make([]string, 0, len(links))
	for _, l := range links {
		link, _ := l.(map[string]any)
		ar, _ := link["AdverseReaction"].(map[string]any)
		if name, ok := ar["name"]; ok && name != nil {
			names = append(names, fmt.Sprint(name))
		}
	}

	out := maps.Clone(row)
	delete(out, "adverseReactions")
	if len(names) > 0 {
		out["adverseReaction.name"] = strings.Join(names, ", ")
	}
	return out
}
