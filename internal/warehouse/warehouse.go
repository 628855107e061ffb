package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Dialect names the SQL flavour an engine speaks.
type Dialect string

const (
	DialectBigQuery Dialect = "bigquery"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Engine executes queries remotely. Every call blocks until the warehouse answers.
type Engine interface {
	Dialect() Dialect
	// Table resolves SCHEMA.NAME and fails with NOT_FOUND when it does not exist.
	Table(ctx context.Context, name string) (Table, error)
	// CacheResult materializes the query into a table owned by the engine.
	CacheResult(ctx context.Context, query string, params ...Param) (Table, error)
	// SaveAsTable replaces target with the query result.
	SaveAsTable(ctx context.Context, query string, target string, params ...Param) (Table, error)
	Count(ctx context.Context, table Table) (int64, error)
	Query(ctx context.Context, query string, params ...Param) ([]Row, error)
	// DropCached drops the tables created by CacheResult so far. The engine
	// stays usable; a report cycle calls it once its jobs are done.
	DropCached(ctx context.Context) error
	// Close drops whatever is still cached.
	Close(ctx context.Context) error
}

// Table is a verified handle to a warehouse table.
type Table struct {
	Schema string
	Name   string
	// Ref is the engine-qualified reference to splice into SQL.
	Ref string
}

func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Param is a named query parameter referenced as @Name.
type Param struct {
	Name  string
	Value any
}

// DateParam binds the calendar date of t.
func DateParam(name string, t time.Time) Param {
	return Param{Name: name, Value: civil.DateOf(t)}
}

// TruncMonth returns an expression yielding the first day of expr's month.
func (d Dialect) TruncMonth(expr string) string {
	switch d {
	case DialectBigQuery:
		return fmt.Sprintf("DATE_TRUNC(%s, MONTH)", expr)
	case DialectPostgres:
		return fmt.Sprintf("CAST(DATE_TRUNC('month', %s) AS DATE)", expr)
	default:
		return fmt.Sprintf("date(%s, 'start of month')", expr)
	}
}

// DaysBetween returns an integer expression for to - from in whole days.
func (d Dialect) DaysBetween(from, to string) string {
	switch d {
	case DialectBigQuery:
		return fmt.Sprintf("DATE_DIFF(%s, %s, DAY)", to, from)
	case DialectPostgres:
		return fmt.Sprintf("(CAST(%s AS DATE) - CAST(%s AS DATE))", to, from)
	default:
		return fmt.Sprintf("CAST(julianday(%s) - julianday(%s) AS INTEGER)", to, from)
	}
}
