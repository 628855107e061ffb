package rfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/salespulse/internal/loader"
	"github.com/angelmondragon/salespulse/internal/warehouse"
	"github.com/angelmondragon/salespulse/pkg/logger"
)

const defaultSampleSize = 10

type Params struct {
	Engine     warehouse.Engine
	Logger     *logger.Logger
	Target     string
	SampleSize int
	// Output receives the sample table; nil discards it.
	Output io.Writer
}

// Result summarizes one RFM run.
type Result struct {
	Table     warehouse.Table
	Processed int64
	Sample    []Score
}

type Aggregator struct {
	engine     warehouse.Engine
	logg       *logger.Logger
	target     string
	sampleSize int
	out        io.Writer
}

func NewAggregator(params Params) (*Aggregator, error) {
	if params.Engine == nil {
		return nil, errors.New("warehouse engine required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	target := strings.TrimSpace(params.Target)
	if target == "" {
		return nil, errors.New("rfm target table is required")
	}
	if _, _, err := warehouse.ParseTableName(target); err != nil {
		return nil, err
	}
	size := params.SampleSize
	if size < 0 {
		size = 0
	} else if size == 0 {
		size = defaultSampleSize
	}
	out := params.Output
	if out == nil {
		out = io.Discard
	}
	return &Aggregator{
		engine:     params.Engine,
		logg:       params.Logger,
		target:     target,
		sampleSize: size,
		out:        out,
	}, nil
}

// Run replaces the target table with fresh scores measured against asOf, then
// reports the processed count and prints a sample of customers with orders.
func (a *Aggregator) Run(ctx context.Context, src loader.Sources, asOf time.Time) (Result, error) {
	ctx = a.logg.WithTable(ctx, a.target)
	a.logg.Info(a.logg.WithField(ctx, "as_of", asOf.Format(time.DateOnly)), "starting rfm segmentation")

	query := ScoresQuery(a.engine.Dialect(), src.Customers, src.Orders)
	saved, err := a.engine.SaveAsTable(ctx, query, a.target, warehouse.DateParam(AsOfParam, asOf))
	if err != nil {
		return Result{}, err
	}

	processed, err := a.engine.Count(ctx, saved)
	if err != nil {
		return Result{}, fmt.Errorf("count %s: %w", saved, err)
	}
	a.logg.Info(a.logg.WithField(ctx, "customers", processed), "rfm segmentation completed")

	cached, err := a.engine.CacheResult(ctx, "SELECT * FROM "+saved.Ref)
	if err != nil {
		return Result{}, fmt.Errorf("cache %s: %w", saved, err)
	}

	sample, err := a.sample(ctx, cached)
	if err != nil {
		return Result{}, err
	}
	if len(sample) > 0 {
		if err := WriteTable(a.out, sample); err != nil {
			return Result{}, fmt.Errorf("print rfm sample: %w", err)
		}
	}

	return Result{Table: saved, Processed: processed, Sample: sample}, nil
}

func (a *Aggregator) sample(ctx context.Context, scores warehouse.Table) ([]Score, error) {
	if a.sampleSize == 0 {
		return nil, nil
	}
	rows, err := a.engine.Query(ctx, sampleQuery(scores, a.sampleSize))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", scores, err)
	}
	out := make([]Score, 0, len(rows))
	for _, row := range rows {
		s, err := scoreFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode rfm row: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Scores reads every row of a saved scores table ordered by customer key.
func Scores(ctx context.Context, engine warehouse.Engine, table warehouse.Table) ([]Score, error) {
	rows, err := engine.Query(ctx, fmt.Sprintf(
		"SELECT C_CUSTKEY, C_NAME, LAST_ORDER_DATE, FREQUENCY, MONETARY, RECENCY_DAYS FROM %s ORDER BY C_CUSTKEY", table.Ref))
	if err != nil {
		return nil, err
	}
	out := make([]Score, 0, len(rows))
	for _, row := range rows {
		s, err := scoreFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode rfm row: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
