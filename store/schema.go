// Package store executes compiled queries against the relational database
// and owns the table layout behind every registry entity.
package store

import (
	"fmt"

	"github.com/giygas/openfda-api/registry"
)

// RelationKind says how a related model is reached and rendered
type RelationKind int

const (
	// BelongsTo renders a single object (or null)
	BelongsTo RelationKind = iota
	// HasMany renders an array of rows holding a key back to the source
	HasMany
	// ManyToMany renders an array reached through a link table
	ManyToMany
)

// Column maps a registry field onto a table column
type Column struct {
	Field string
	Name  string
	Kind  registry.FieldKind
}

// Relation describes one navigable relation of a model.
// The join condition is target.ForeignKey = source.LocalKey; for ManyToMany
// the link table sits in between (link.LinkLocal = source.LocalKey and
// target.ForeignKey = link.LinkForeign).
type Relation struct {
	Name        string
	Kind        RelationKind
	Target      string
	LocalKey    string
	ForeignKey  string
	LinkTable   string
	LinkLocal   string
	LinkForeign string
}

// Many reports whether the relation renders as an array
func (r Relation) Many() bool {
	return r.Kind != BelongsTo
}

// Model is the storage description of one entity
type Model struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []Column
	Relations  []Relation
}

// Column returns the column behind a registry field
func (m *Model) Column(field string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// Relation returns the relation with the given name
func (m *Model) Relation(name string) (Relation, bool) {
	for _, r := range m.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Schema indexes models by entity name
type Schema struct {
	models map[string]*Model
	order  []string
}

// NewSchema builds a schema from models
func NewSchema(models ...Model) *Schema {
	s := &Schema{models: make(map[string]*Model, len(models))}
	for i := range models {
		m := models[i]
		s.models[m.Name] = &m
		s.order = append(s.order, m.Name)
	}
	return s
}

// Model looks up a model by entity name
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Tables returns every table the schema touches, link tables included
func (s *Schema) Tables() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, name := range s.order {
		m := s.models[name]
		add(m.Table)
		for _, r := range m.Relations {
			add(r.LinkTable)
		}
	}
	return out
}

// Validate checks that every registry entity, field and join has storage
func (s *Schema) Validate(reg *registry.Registry) error {
	for _, name := range reg.Names() {
		entity, _ := reg.Entity(name)
		m, ok := s.models[name]
		if !ok {
			return fmt.Errorf("entity %q has no model", name)
		}
		for _, f := range entity.Fields {
			c, ok := m.Column(f.Name)
			if !ok {
				return fmt.Errorf("field %s.%s has no column", name, f.Name)
			}
			if c.Kind != f.Kind {
				return fmt.Errorf("field %s.%s is %s but column %s is %s", name, f.Name, f.Kind, c.Name, c.Kind)
			}
		}
		for _, j := range entity.Joins {
			rel, ok := m.Relation(j.Relation)
			if !ok {
				return fmt.Errorf("join %s.%s: model has no relation %q", name, j.Name, j.Relation)
			}
			target := rel.Target
			if j.IsTernary() {
				junction, ok := s.models[rel.Target]
				if !ok {
					return fmt.Errorf("join %s.%s: junction model %q missing", name, j.Name, rel.Target)
				}
				ptr, ok := junction.Relation(j.Pointer)
				if !ok {
					return fmt.Errorf("join %s.%s: junction %q has no relation %q", name, j.Name, rel.Target, j.Pointer)
				}
				target = ptr.Target
			}
			if target != j.Target {
				return fmt.Errorf("join %s.%s reaches %q, registry expects %q", name, j.Name, target, j.Target)
			}
		}
		for _, r := range m.Relations {
			if _, ok := s.models[r.Target]; !ok {
				return fmt.Errorf("relation %s.%s targets unknown model %q", name, r.Name, r.Target)
			}
		}
	}
	return nil
}

func col(field, name string, kind registry.FieldKind) Column {
	return Column{Field: field, Name: name, Kind: kind}
}

func belongsTo(name, target, localKey, foreignKey string) Relation {
	return Relation{Name: name, Kind: BelongsTo, Target: target, LocalKey: localKey, ForeignKey: foreignKey}
}

func hasMany(name, target, foreignKey string) Relation {
	return Relation{Name: name, Kind: HasMany, Target: target, LocalKey: "id", ForeignKey: foreignKey}
}

// DefaultSchema is the table layout created by the migrations package
func DefaultSchema() *Schema {
	return NewSchema(
		Model{
			Name: registry.Shortages, Table: "shortages", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("drugId", "drug_id", registry.Number),
				col("dosageForm", "dosage_form", registry.Text),
				col("description", "description", registry.Text),
				col("initialPostingDate", "initial_posting_date", registry.Date),
				col("presentation", "presentation", registry.Text),
			},
			Relations: []Relation{
				belongsTo("Drug", registry.Drug, "drug_id", "id"),
			},
		},
		Model{
			Name: registry.Company, Table: "company", PrimaryKey: "name",
			Columns: []Column{
				col("name", "name", registry.Text),
				col("drugCount", "drug_count", registry.Number),
			},
			Relations: []Relation{
				{Name: "drug", Kind: HasMany, Target: registry.Drug, LocalKey: "name", ForeignKey: "company_name"},
			},
		},
		Model{
			Name: registry.AdverseReaction, Table: "adverse_reaction", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("name", "name", registry.Text),
			},
			Relations: []Relation{
				hasMany("drugs", registry.RelAdverseReactionXDrug, "adverse_reaction_id"),
				hasMany("reports", registry.RelAdverseReactionXReport, "adverse_reaction_id"),
			},
		},
		Model{
			Name: registry.Report, Table: "report", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("occurCountry", "occur_country", registry.Text),
				col("transmissionDate", "transmission_date", registry.Text),
				col("patientAge", "patient_age", registry.Number),
				col("patientGender", "patient_gender", registry.Text),
				col("patientWeight", "patient_weight", registry.Number),
			},
			Relations: []Relation{
				hasMany("drugs", registry.RelReportXDrug, "report_id"),
				hasMany("adverseReactions", registry.RelAdverseReactionXReport, "report_id"),
			},
		},
		Model{
			Name: registry.ActiveIngredient, Table: "active_ingredient", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("name", "name", registry.Text),
				col("strength", "strength", registry.Text),
			},
			Relations: []Relation{
				{
					Name: "Product", Kind: ManyToMany, Target: registry.Product,
					LocalKey: "id", ForeignKey: "id",
					LinkTable: "product_active_ingredient", LinkLocal: "active_ingredient_id", LinkForeign: "product_id",
				},
			},
		},
		Model{
			Name: registry.Product, Table: "product", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("activeIngredientName", "active_ingredient_name", registry.Text),
				col("activeIngredientStrength", "active_ingredient_strength", registry.Text),
				col("dosageForm", "dosage_form", registry.Text),
				col("route", "route", registry.Text),
				col("drugId", "drug_id", registry.Number),
			},
			Relations: []Relation{
				belongsTo("Drug", registry.Drug, "drug_id", "id"),
				{
					Name: "ActiveIngredient", Kind: ManyToMany, Target: registry.ActiveIngredient,
					LocalKey: "id", ForeignKey: "id",
					LinkTable: "product_active_ingredient", LinkLocal: "product_id", LinkForeign: "active_ingredient_id",
				},
			},
		},
		Model{
			Name: registry.RelAdverseReactionXDrug, Table: "rel_adverse_reaction_x_drug", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("drugId", "drug_id", registry.Number),
				col("adverseReactionId", "adverse_reaction_id", registry.Number),
			},
			Relations: []Relation{
				belongsTo("Drug", registry.Drug, "drug_id", "id"),
				belongsTo("AdverseReaction", registry.AdverseReaction, "adverse_reaction_id", "id"),
			},
		},
		Model{
			Name: registry.RelAdverseReactionXReport, Table: "rel_adverse_reaction_x_report", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("reportId", "report_id", registry.Number),
				col("adverseReactionId", "adverse_reaction_id", registry.Number),
			},
			Relations: []Relation{
				belongsTo("Report", registry.Report, "report_id", "id"),
				belongsTo("AdverseReaction", registry.AdverseReaction, "adverse_reaction_id", "id"),
			},
		},
		Model{
			Name: registry.RelReportXDrug, Table: "rel_report_x_drug", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("reportId", "report_id", registry.Number),
				col("drugId", "drug_id", registry.Number),
			},
			Relations: []Relation{
				belongsTo("Report", registry.Report, "report_id", "id"),
				belongsTo("Drug", registry.Drug, "drug_id", "id"),
			},
		},
		Model{
			Name: registry.Drug, Table: "drug", PrimaryKey: "id",
			Columns: []Column{
				col("id", "id", registry.Number),
				col("companyName", "company_name", registry.Text),
				col("drugName", "drug_name", registry.Text),
			},
			Relations: []Relation{
				belongsTo("Company", registry.Company, "company_name", "name"),
				hasMany("Product", registry.Product, "drug_id"),
				hasMany("shortages", registry.Shortages, "drug_id"),
				hasMany("adverseReactions", registry.RelAdverseReactionXDrug, "drug_id"),
				hasMany("reports", registry.RelReportXDrug, "drug_id"),
			},
		},
	)
}
