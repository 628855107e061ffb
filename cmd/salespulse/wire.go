package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/salespulse/api/controllers"
	"github.com/angelmondragon/salespulse/internal/chart"
	"github.com/angelmondragon/salespulse/internal/jobs"
	"github.com/angelmondragon/salespulse/internal/warehouse"
	pkgbigquery "github.com/angelmondragon/salespulse/pkg/bigquery"
	"github.com/angelmondragon/salespulse/pkg/config"
	"github.com/angelmondragon/salespulse/pkg/db"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/angelmondragon/salespulse/pkg/migrate"
	"github.com/angelmondragon/salespulse/pkg/redis"
	"github.com/angelmondragon/salespulse/pkg/storage/gcs"
)

const (
	defaultViewerAddr = ":8080"
	lockName          = "report"
)

type resources struct {
	env      string
	engine   warehouse.Engine
	bigquery *pkgbigquery.Client
	db       *db.Client
	redis    *redis.Client
	gcs      *gcs.Client
}

// bootstrap connects every configured dependency; on failure it releases what was opened.
func bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger) (res *resources, err error) {
	res = &resources{env: cfg.App.Env}
	defer func() {
		if err != nil {
			res.close(logg)
			res = nil
		}
	}()

	if cfg.Warehouse.UsesSQL() {
		res.db, err = db.New(ctx, cfg.Warehouse.Engine, cfg.DB, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrap database: %w", err)
		}
		if err = migrate.MaybeRunDev(ctx, cfg, logg, res.db); err != nil {
			return res, fmt.Errorf("dev migrations: %w", err)
		}
		var engine *warehouse.SQLEngine
		if engine, err = warehouse.NewSQLEngine(res.db, logg); err != nil {
			return res, err
		}
		res.engine = engine
	} else {
		res.bigquery, err = pkgbigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrap bigquery: %w", err)
		}
		var engine *warehouse.BigQueryEngine
		if engine, err = warehouse.NewBigQueryEngine(res.bigquery, cfg.BigQuery.CacheTTL, logg); err != nil {
			return res, err
		}
		res.engine = engine
	}

	if cfg.Redis.Enabled() {
		res.redis, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrap redis: %w", err)
		}
	}

	if cfg.Chart.Sink == config.ChartSinkGCS {
		res.gcs, err = gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrap gcs: %w", err)
		}
	}
	return res, nil
}

// close drops cached warehouse tables before releasing the clients.
func (r *resources) close(logg *logger.Logger) {
	ctx := context.Background()
	if r.engine != nil {
		if err := r.engine.Close(ctx); err != nil {
			logg.Error(ctx, "error dropping cached tables", err)
		}
	}
	if r.bigquery != nil {
		if err := r.bigquery.Close(); err != nil {
			logg.Error(ctx, "error closing bigquery", err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}
}

func (r *resources) checks() map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if r.bigquery != nil {
		checks["bigquery"] = r.bigquery
	}
	if r.db != nil {
		checks["database"] = r.db
	}
	if r.redis != nil {
		checks["redis"] = r.redis
	}
	if r.gcs != nil {
		checks["gcs"] = r.gcs
	}
	return checks
}

func chartSinks(cfg *config.Config, r *resources, holder *chart.Holder) ([]chart.Sink, error) {
	var sinks []chart.Sink
	switch cfg.Chart.Sink {
	case config.ChartSinkGCS:
		sink, err := chart.NewGCSSink(r.gcs, cfg.Chart.Output)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	default:
		sinks = append(sinks, chart.FileSink{Path: cfg.Chart.Output})
	}
	if holder != nil {
		sinks = append(sinks, holder)
	}
	return sinks, nil
}

func runLock(cfg *config.Config, r *resources) (jobs.Lock, error) {
	if r.redis == nil {
		return jobs.NopLock{}, nil
	}
	return jobs.NewRedisLock(r.redis, r.redis.LockKey(r.env, lockName), cfg.Redis.LockTTL)
}
