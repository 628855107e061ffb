package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/salespulse/internal/chart"
	"github.com/angelmondragon/salespulse/internal/loader"
	"github.com/angelmondragon/salespulse/internal/rfm"
	"github.com/angelmondragon/salespulse/internal/trend"
)

const (
	JobLoad  = "load"
	JobRFM   = "rfm"
	JobTrend = "trend"
)

// CacheDropper releases the tables a cycle cached.
type CacheDropper interface {
	DropCached(ctx context.Context) error
}

// PipelineParams wire the report stages together.
type PipelineParams struct {
	Cache     CacheDropper
	Loader    *loader.Loader
	RFM       *rfm.Aggregator
	Trend     *trend.Aggregator
	Publisher *chart.Publisher
	// AsOf resolves the recency anchor for each run.
	AsOf func(now time.Time) (time.Time, error)
	Now  func() time.Time
}

// Pipeline shares the cached source handles between its jobs within a cycle.
type Pipeline struct {
	params  PipelineParams
	sources *loader.Sources
}

func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Cache == nil {
		return nil, errors.New("cache dropper required")
	}
	if params.Loader == nil {
		return nil, errors.New("loader required")
	}
	if params.RFM == nil {
		return nil, errors.New("rfm aggregator required")
	}
	if params.Trend == nil {
		return nil, errors.New("trend aggregator required")
	}
	if params.Publisher == nil {
		return nil, errors.New("chart publisher required")
	}
	if params.AsOf == nil {
		return nil, errors.New("as-of resolver required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Pipeline{params: params}, nil
}

// Jobs returns load, rfm and trend in the order they must run.
func (p *Pipeline) Jobs() []Job {
	return []Job{
		&stage{name: JobLoad, run: p.load},
		&stage{name: JobRFM, run: p.rfm},
		&stage{name: JobTrend, run: p.trend},
	}
}

// Release forgets the loaded sources and drops every table cached during
// the cycle, so the next cycle starts from the silver tables again.
func (p *Pipeline) Release(ctx context.Context) error {
	p.sources = nil
	return p.params.Cache.DropCached(ctx)
}

func (p *Pipeline) load(ctx context.Context) (int64, error) {
	p.sources = nil
	src, err := p.params.Loader.Load(ctx)
	if err != nil {
		return 0, err
	}
	p.sources = &src
	return 2, nil
}

func (p *Pipeline) loaded() (loader.Sources, error) {
	if p.sources == nil {
		return loader.Sources{}, errors.New("sources not loaded")
	}
	return *p.sources, nil
}

func (p *Pipeline) rfm(ctx context.Context) (int64, error) {
	src, err := p.loaded()
	if err != nil {
		return 0, err
	}
	asOf, err := p.params.AsOf(p.params.Now())
	if err != nil {
		return 0, err
	}
	res, err := p.params.RFM.Run(ctx, src, asOf)
	if err != nil {
		return 0, err
	}
	return res.Processed, nil
}

func (p *Pipeline) trend(ctx context.Context) (int64, error) {
	src, err := p.loaded()
	if err != nil {
		return 0, err
	}
	points, err := p.params.Trend.Run(ctx, src.Orders)
	if err != nil {
		return 0, err
	}
	if err := p.params.Publisher.Publish(ctx, points); err != nil {
		return 0, err
	}
	return int64(len(points)), nil
}

type stage struct {
	name string
	run  func(ctx context.Context) (int64, error)
	rows int64
}

func (s *stage) Name() string { return s.name }

func (s *stage) Run(ctx context.Context) error {
	rows, err := s.run(ctx)
	if err != nil {
		return err
	}
	s.rows = rows
	return nil
}

func (s *stage) Rows() int64 { return s.rows }
