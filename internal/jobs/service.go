package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/angelmondragon/salespulse/pkg/metrics"
	"github.com/google/uuid"
)

// ErrLockHeld is returned by RunOnce when another instance owns the run lock.
var ErrLockHeld = errors.New("report run lock held by another instance")

// cleanupTimeout bounds the post-run cleanup, which outlives a cancelled run.
const cleanupTimeout = 30 * time.Second

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration

	// Cleanup, when set, runs at the end of every RunOnce that held the lock.
	Cleanup func(context.Context) error

	// AfterCycle, when set, sees the outcome of every scheduled cycle.
	AfterCycle func(context.Context, error)
}

// Service executes the registered jobs in order, once or on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
	cleanup  func(context.Context) error
	after    func(context.Context, error)
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	lock := params.Lock
	if lock == nil {
		lock = NopLock{}
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		cleanup:  params.Cleanup,
		after:    params.AfterCycle,
	}, nil
}

// RunOnce executes one cycle and returns the first job failure.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		return ErrLockHeld
	}
	ctx = s.logg.WithRunID(ctx, uuid.NewString())
	defer s.finish(ctx)

	s.logg.Info(ctx, "report run starting")
	for _, job := range s.registry.Jobs() {
		if err := s.runJob(ctx, job); err != nil {
			return fmt.Errorf("job %s: %w", job.Name(), err)
		}
	}
	s.logg.Info(ctx, "report run complete")
	return nil
}

// finish drops the cycle's cached tables and frees the lock on a context
// that survives cancellation of the run.
func (s *Service) finish(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if s.cleanup != nil {
		if err := s.cleanup(ctx); err != nil {
			s.logg.Error(ctx, "failed to drop cached tables", err)
		}
	}
	if err := s.lock.Release(ctx); err != nil {
		s.logg.Error(ctx, "failed to release run lock", err)
	}
}

// Run executes a cycle immediately and then every interval until ctx ends.
// A failed or skipped cycle is logged and the loop continues.
func (s *Service) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("interval must be positive for scheduled runs")
	}
	s.cycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "report scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrLockHeld):
		s.logg.Info(ctx, "another report instance is running; skipping this cycle")
	default:
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	if s.after != nil {
		s.after(ctx, err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithJob(ctx, job.Name())
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	if rr, ok := job.(RowReporter); ok {
		s.metrics.SetRows(job.Name(), rr.Rows())
		jobCtx = s.logg.WithField(jobCtx, "rows", rr.Rows())
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}
