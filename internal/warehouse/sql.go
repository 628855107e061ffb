package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/salespulse/pkg/db"
	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// SQLEngine runs the warehouse operations on a gorm connection (Postgres or SQLite).
// SQLite has no schemas, so SCHEMA.NAME resolves to NAME there.
type SQLEngine struct {
	db      *db.Client
	dialect Dialect
	logg    *logger.Logger

	mu     sync.Mutex
	cached []Table
}

func NewSQLEngine(client *db.Client, logg *logger.Logger) (*SQLEngine, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	var dialect Dialect
	switch client.Dialect() {
	case "postgres":
		dialect = DialectPostgres
	case "sqlite":
		dialect = DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", client.Dialect())
	}
	return &SQLEngine{db: client, dialect: dialect, logg: logg}, nil
}

func (e *SQLEngine) Dialect() Dialect { return e.dialect }

func (e *SQLEngine) Table(ctx context.Context, name string) (Table, error) {
	t, err := e.resolve(name)
	if err != nil {
		return Table{}, err
	}
	lookup := t.Ref
	if e.dialect == DialectPostgres {
		lookup = strings.ToLower(lookup)
	}
	if !e.db.DB().WithContext(ctx).Migrator().HasTable(lookup) {
		return Table{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("table %s does not exist", name))
	}
	return t, nil
}

func (e *SQLEngine) CacheResult(ctx context.Context, query string, params ...Param) (Table, error) {
	name := "cache_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	t := Table{Name: name, Ref: name}
	if err := e.db.Exec(ctx, "CREATE TABLE "+t.Ref+" AS "+query, sqlArgs(params)...).Error; err != nil {
		return Table{}, classify(err, "cache query result")
	}

	e.mu.Lock()
	e.cached = append(e.cached, t)
	e.mu.Unlock()

	if e.logg != nil {
		e.logg.Debug(e.logg.WithTable(ctx, name), "query result cached")
	}
	return t, nil
}

func (e *SQLEngine) SaveAsTable(ctx context.Context, query string, target string, params ...Param) (Table, error) {
	t, err := e.resolve(target)
	if err != nil {
		return Table{}, err
	}
	err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Exec("DROP TABLE IF EXISTS " + t.Ref).Error; err != nil {
			return err
		}
		return tx.Exec("CREATE TABLE "+t.Ref+" AS "+query, sqlArgs(params)...).Error
	})
	if err != nil {
		return Table{}, classify(err, fmt.Sprintf("save %s", target))
	}
	return t, nil
}

func (e *SQLEngine) Count(ctx context.Context, table Table) (int64, error) {
	return countRows(ctx, e, table)
}

func (e *SQLEngine) Query(ctx context.Context, query string, params ...Param) ([]Row, error) {
	rows, err := e.db.Raw(ctx, query, sqlArgs(params)...).Rows()
	if err != nil {
		return nil, classify(err, "run query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify(err, "read columns")
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(err, "scan row")
		}
		row := newRow(len(columns))
		for i, col := range columns {
			row.set(col, values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate rows")
	}
	return out, nil
}

func (e *SQLEngine) Close(ctx context.Context) error {
	return e.DropCached(ctx)
}

func (e *SQLEngine) DropCached(ctx context.Context) error {
	e.mu.Lock()
	cached := e.cached
	e.cached = nil
	e.mu.Unlock()

	var errs error
	for _, t := range cached {
		if err := e.db.Exec(ctx, "DROP TABLE IF EXISTS "+t.Ref).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("drop %s: %w", t.Name, err))
		}
	}
	return errs
}

func (e *SQLEngine) resolve(name string) (Table, error) {
	schema, table, err := ParseTableName(name)
	if err != nil {
		return Table{}, err
	}
	t := Table{Schema: schema, Name: table, Ref: table}
	if e.dialect == DialectPostgres && schema != "" {
		t.Ref = schema + "." + table
	}
	return t, nil
}

func sqlArgs(params []Param) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for _, p := range params {
		value := p.Value
		if d, ok := value.(civil.Date); ok {
			value = d.String()
		}
		args = append(args, sql.Named(p.Name, value))
	}
	return args
}

func countRows(ctx context.Context, e Engine, table Table) (int64, error) {
	rows, err := e.Query(ctx, "SELECT COUNT(*) AS ROW_COUNT FROM "+table.Ref)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("count of %s returned %d rows", table, len(rows)))
	}
	n, _, err := rows[0].Int64("ROW_COUNT")
	return n, err
}
