package store

import (
	"fmt"
	"strings"
)

// Driver names accepted by Open
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect renders the database specific parts of a query: JSON documents,
// case-insensitive matching and boolean literals.
type Dialect interface {
	Name() string
	// Object builds a JSON object from "'key', expr" pairs
	Object(pairs []string) string
	// One wraps a scalar subquery returning one JSON object
	One(subquery string) string
	// Many aggregates obj over the rows of from/where into a JSON array
	Many(obj, from, where, orderBy string) string
	// ILike matches expr against a bound pattern ignoring case
	ILike(expr string) string
	Lower(expr string) string
	CastText(expr string) string
	// Number renders the placeholder of a numeric comparison
	Number() string
	True() string
	False() string
}

// DialectFor returns the dialect for a driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres, "pgx":
		return postgresDialect{}, nil
	case DriverSQLite, "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return DriverPostgres }

func (postgresDialect) Object(pairs []string) string {
	return "json_build_object(" + strings.Join(pairs, ", ") + ")"
}

func (postgresDialect) One(subquery string) string {
	return "(" + subquery + ")"
}

func (postgresDialect) Many(obj, from, where, orderBy string) string {
	return fmt.Sprintf("(SELECT COALESCE(json_agg(%s ORDER BY %s), '[]'::json) FROM %s WHERE %s)",
		obj, orderBy, from, where)
}

func (postgresDialect) ILike(expr string) string {
	return expr + ` ILIKE ? ESCAPE '\'`
}

func (postgresDialect) Lower(expr string) string    { return "LOWER(" + expr + ")" }
func (postgresDialect) CastText(expr string) string { return "CAST(" + expr + " AS TEXT)" }
func (postgresDialect) True() string                { return "TRUE" }

// Number binds as NUMERIC: lib/pq sends text parameters, and an untyped
// placeholder next to an INTEGER column would reject 29.5 or 2^40.
func (postgresDialect) Number() string { return "CAST(? AS NUMERIC)" }
func (postgresDialect) False() string               { return "FALSE" }

// sqliteDialect targets SQLite 3.44+ (ordered aggregates). JSON values lose
// their subtype when crossing a subquery, so nested documents go through json().
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return DriverSQLite }

func (sqliteDialect) Object(pairs []string) string {
	return "json_object(" + strings.Join(pairs, ", ") + ")"
}

func (sqliteDialect) One(subquery string) string {
	return "json((" + subquery + "))"
}

func (sqliteDialect) Many(obj, from, where, orderBy string) string {
	return fmt.Sprintf("json((SELECT COALESCE(json_group_array(json(%s) ORDER BY %s), '[]') FROM %s WHERE %s))",
		obj, orderBy, from, where)
}

// ILike folds ASCII letters only, as SQLite's LOWER does
func (sqliteDialect) ILike(expr string) string {
	return "LOWER(" + expr + `) LIKE LOWER(?) ESCAPE '\'`
}

func (sqliteDialect) Lower(expr string) string    { return "LOWER(" + expr + ")" }
func (sqliteDialect) CastText(expr string) string { return "CAST(" + expr + " AS TEXT)" }
func (sqliteDialect) True() string                { return "1" }
func (sqliteDialect) Number() string              { return "?" }
func (sqliteDialect) False() string               { return "0" }
