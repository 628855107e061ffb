package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	pkgbigquery "github.com/angelmondragon/salespulse/pkg/bigquery"
	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"google.golang.org/api/iterator"
)

const (
	cacheTablePrefix = "sp_cache_"
	defaultCacheTTL  = 24 * time.Hour
)

// BigQueryEngine runs every operation as a BigQuery job.
type BigQueryEngine struct {
	client   *pkgbigquery.Client
	logg     *logger.Logger
	cacheTTL time.Duration

	mu     sync.Mutex
	cached []*bigquery.Table
}

// NewBigQueryEngine wraps a connected client. Cache tables expire after cacheTTL
// even if Close never runs.
func NewBigQueryEngine(client *pkgbigquery.Client, cacheTTL time.Duration, logg *logger.Logger) (*BigQueryEngine, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &BigQueryEngine{client: client, logg: logg, cacheTTL: cacheTTL}, nil
}

func (e *BigQueryEngine) Dialect() Dialect { return DialectBigQuery }

func (e *BigQueryEngine) Table(ctx context.Context, name string) (Table, error) {
	dataset, table, err := e.parse(name)
	if err != nil {
		return Table{}, err
	}
	if _, err := e.client.TableMetadata(ctx, dataset, table); err != nil {
		return Table{}, classify(err, fmt.Sprintf("table %s", name))
	}
	return e.handle(dataset, table), nil
}

func (e *BigQueryEngine) CacheResult(ctx context.Context, query string, params ...Param) (Table, error) {
	dataset := e.client.CacheDataset()
	name := cacheTablePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	dst, err := e.client.Table(dataset, name)
	if err != nil {
		return Table{}, err
	}

	if err := e.client.QueryInto(ctx, query, bigQueryParams(params), dst, bigquery.WriteTruncate); err != nil {
		return Table{}, classify(err, "cache query result")
	}
	e.track(dst)

	if err := e.client.ExpireTable(ctx, dst, time.Now().Add(e.cacheTTL)); err != nil {
		return Table{}, classify(err, fmt.Sprintf("set expiration on %s.%s", dataset, name))
	}
	e.debug(ctx, name, "query result cached")
	return e.handle(dataset, name), nil
}

func (e *BigQueryEngine) SaveAsTable(ctx context.Context, query string, target string, params ...Param) (Table, error) {
	dataset, table, err := e.parse(target)
	if err != nil {
		return Table{}, err
	}
	dst, err := e.client.Table(dataset, table)
	if err != nil {
		return Table{}, err
	}
	if err := e.client.QueryInto(ctx, query, bigQueryParams(params), dst, bigquery.WriteTruncate); err != nil {
		return Table{}, classify(err, fmt.Sprintf("save %s", target))
	}
	return e.handle(dataset, table), nil
}

func (e *BigQueryEngine) Count(ctx context.Context, table Table) (int64, error) {
	return countRows(ctx, e, table)
}

func (e *BigQueryEngine) Query(ctx context.Context, query string, params ...Param) ([]Row, error) {
	it, err := e.client.Query(ctx, query, bigQueryParams(params))
	if err != nil {
		return nil, classify(err, "run query")
	}

	var rows []Row
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "read query result")
		}
		row := newRow(len(values))
		for col, v := range values {
			row.set(col, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *BigQueryEngine) Close(ctx context.Context) error {
	return e.DropCached(ctx)
}

// DropCached deletes the cache tables now instead of waiting for their expiry.
func (e *BigQueryEngine) DropCached(ctx context.Context) error {
	e.mu.Lock()
	cached := e.cached
	e.cached = nil
	e.mu.Unlock()

	var errs error
	for _, t := range cached {
		errs = multierr.Append(errs, e.client.DeleteTable(ctx, t))
	}
	return errs
}

func (e *BigQueryEngine) parse(name string) (string, string, error) {
	dataset, table, err := ParseTableName(name)
	if err != nil {
		return "", "", err
	}
	if dataset == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("table name %q needs a dataset", name))
	}
	return dataset, table, nil
}

func (e *BigQueryEngine) handle(dataset, table string) Table {
	return Table{
		Schema: dataset,
		Name:   table,
		Ref:    bigQueryRef(e.client.ProjectID(), dataset, table),
	}
}

func (e *BigQueryEngine) track(t *bigquery.Table) {
	e.mu.Lock()
	e.cached = append(e.cached, t)
	e.mu.Unlock()
}

func (e *BigQueryEngine) debug(ctx context.Context, table, msg string) {
	if e.logg == nil {
		return
	}
	e.logg.Debug(e.logg.WithTable(ctx, table), msg)
}

func bigQueryRef(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

func bigQueryParams(params []Param) []bigquery.QueryParameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]bigquery.QueryParameter, 0, len(params))
	for _, p := range params {
		out = append(out, bigquery.QueryParameter{Name: p.Name, Value: p.Value})
	}
	return out
}
