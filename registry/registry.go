// Package registry declares which entities the query endpoint exposes, which
// scalar fields each one carries and which related entities it can be joined
// to. The registry is built once at startup and never mutated afterwards.
package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is returned when an entity name is not registered
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownJoin is returned when a join is not allowed for an entity
	ErrUnknownJoin = errors.New("unknown join")
)

// FieldKind tells the compiler how to coerce and compare a field value
type FieldKind int

const (
	Text FieldKind = iota
	Number
	Date
)

func (k FieldKind) String() string {
	switch k {
	case Number:
		return "number"
	case Date:
		return "date"
	default:
		return "text"
	}
}

// JoinKind separates foreign-key joins from joins routed through a junction record
type JoinKind int

const (
	Direct JoinKind = iota
	Ternary
)

func (k JoinKind) String() string {
	if k == Ternary {
		return "ternary"
	}
	return "direct"
}

// Field is a scalar, queryable attribute of an entity
type Field struct {
	Name string
	Kind FieldKind
}

// Join describes a related entity reachable from an entity.
//
// For a direct join Relation is the relation field on the entity itself.
// For a ternary join Relation is the junction field on the entity and
// Pointer the field on the junction record that references Target.
type Join struct {
	Name     string
	Target   string
	Kind     JoinKind
	Relation string
	Pointer  string
}

// IsTernary reports whether the join traverses a junction record
func (j Join) IsTernary() bool {
	return j.Kind == Ternary
}

// Entity is a queryable item
type Entity struct {
	Name   string
	Fields []Field
	Joins  []Join
}

// Field returns the named scalar field
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the scalar field names in declaration order
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Join returns the named join
func (e *Entity) Join(name string) (Join, bool) {
	for _, j := range e.Joins {
		if j.Name == name {
			return j, true
		}
	}
	return Join{}, false
}

// JoinByRelation returns the join whose relation (or junction) field is rel
func (e *Entity) JoinByRelation(rel string) (Join, bool) {
	for _, j := range e.Joins {
		if j.Relation == rel {
			return j, true
		}
	}
	return Join{}, false
}

// JoinNames returns the allowed join names in declaration order
func (e *Entity) JoinNames() []string {
	names := make([]string, 0, len(e.Joins))
	for _, j := range e.Joins {
		names = append(names, j.Name)
	}
	return names
}

// Registry is the immutable set of queryable entities
type Registry struct {
	entities map[string]*Entity
	order    []string
}

// New builds a registry and checks that it is self-consistent
func New(entities ...Entity) (*Registry, error) {
	r := &Registry{
		entities: make(map[string]*Entity, len(entities)),
		order:    make([]string, 0, len(entities)),
	}

	for i := range entities {
		e := entities[i]
		if e.Name == "" {
			return nil, fmt.Errorf("entity %d has no name", i)
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}

		seen := make(map[string]bool)
		for _, f := range e.Fields {
			if seen[f.Name] {
				return nil, fmt.Errorf("entity %q: duplicate field %q", e.Name, f.Name)
			}
			seen[f.Name] = true
		}
		for _, j := range e.Joins {
			if seen[j.Name] {
				return nil, fmt.Errorf("entity %q: join %q clashes with another field or join", e.Name, j.Name)
			}
			seen[j.Name] = true
			if j.Relation == "" {
				return nil, fmt.Errorf("entity %q: join %q has no relation", e.Name, j.Name)
			}
			if j.Kind == Ternary && j.Pointer == "" {
				return nil, fmt.Errorf("entity %q: ternary join %q has no pointer field", e.Name, j.Name)
			}
		}

		r.entities[e.Name] = &e
		r.order = append(r.order, e.Name)
	}

	for _, name := range r.order {
		for _, j := range r.entities[name].Joins {
			if _, ok := r.entities[j.Target]; !ok {
				return nil, fmt.Errorf("entity %q: join %q targets unknown entity %q", name, j.Name, j.Target)
			}
		}
	}

	return r, nil
}

// MustNew is like New but panics on an inconsistent declaration
func MustNew(entities ...Entity) *Registry {
	r, err := New(entities...)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return r
}

// Entity returns the named entity
func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns the entity names in declaration order
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve returns how join is reached from entity
func (r *Registry) Resolve(entity, join string) (Join, error) {
	e, ok := r.entities[entity]
	if !ok {
		return Join{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	j, ok := e.Join(join)
	if !ok {
		return Join{}, fmt.Errorf("%w: %s.%s", ErrUnknownJoin, entity, join)
	}
	return j, nil
}
