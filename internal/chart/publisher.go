package chart

import (
	"bytes"
	"context"
	"errors"

	"github.com/angelmondragon/salespulse/internal/trend"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"go.uber.org/multierr"
)

// Publisher renders the trend chart and hands it to every sink.
type Publisher struct {
	opts  Options
	sinks []Sink
	logg  *logger.Logger
}

func NewPublisher(opts Options, logg *logger.Logger, sinks ...Sink) (*Publisher, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("at least one chart sink is required")
	}
	return &Publisher{opts: opts.withDefaults(), sinks: kept, logg: logg}, nil
}

// Publish renders points once and attempts every sink, returning the combined failures.
func (p *Publisher) Publish(ctx context.Context, points []trend.Point) error {
	var buf bytes.Buffer
	if err := Render(&buf, points, p.opts); err != nil {
		return err
	}

	var errs error
	for _, s := range p.sinks {
		location, err := s.Publish(ctx, buf.Bytes())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		p.logg.Info(p.logg.WithFields(ctx, map[string]any{
			"location": location,
			"bytes":    buf.Len(),
			"months":   len(points),
		}), "chart published")
	}
	return errs
}
