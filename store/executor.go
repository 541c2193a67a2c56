package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/giygas/openfda-api/logging"
	"github.com/giygas/openfda-api/query"
)

// Executor runs compiled queries against the database
type Executor struct {
	db      *sqlx.DB
	schema  *Schema
	dialect Dialect
}

// NewExecutor creates an executor, picking the dialect from the driver name
func NewExecutor(db *sqlx.DB, schema *Schema) (*Executor, error) {
	dialect, err := DialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &Executor{db: db, schema: schema, dialect: dialect}, nil
}

// Find fetches one page of entity rows matching where, shaped by sel.
// Joined data is nested: to-one relations as objects, to-many as arrays.
func (e *Executor) Find(ctx context.Context, entity string, where, sel *query.Node, limit, offset int) ([]map[string]any, error) {
	q, args, err := newBuilder(e.schema, e.dialect).find(entity, where, sel, limit, offset)
	if err != nil {
		return nil, err
	}
	q = e.db.Rebind(q)
	logging.Debug("Executing query", "item", entity, "sql", q, "args", len(args))

	rows, err := e.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	defer rows.Close()

	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", entity, err)
		}
		row, err := decodeDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", entity, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", entity, err)
	}

	return out, nil
}

// Query runs a compiled query
func (e *Executor) Query(ctx context.Context, c *query.Compiled) ([]map[string]any, error) {
	return e.Find(ctx, c.Entity, c.Where, c.Select, c.Limit, c.Offset)
}

func decodeDocument(doc []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

// Counts returns the number of rows per table
func (e *Executor) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range e.schema.Tables() {
		var n int64
		if err := e.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Ping checks the database connection
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}
