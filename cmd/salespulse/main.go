package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/salespulse/api"
	"github.com/angelmondragon/salespulse/api/routes"
	"github.com/angelmondragon/salespulse/internal/chart"
	"github.com/angelmondragon/salespulse/internal/jobs"
	"github.com/angelmondragon/salespulse/internal/loader"
	"github.com/angelmondragon/salespulse/internal/rfm"
	"github.com/angelmondragon/salespulse/internal/trend"
	"github.com/angelmondragon/salespulse/pkg/config"
	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/angelmondragon/salespulse/pkg/instance"
	"github.com/angelmondragon/salespulse/pkg/logger"
	"github.com/angelmondragon/salespulse/pkg/metrics"
)

const serviceName = "salespulse"

func main() {
	serve := flag.Bool("serve", false, "keep the chart viewer running after the report run")
	once := flag.Bool("once", false, "run the report once even when an interval is configured")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"engine":   cfg.Warehouse.Engine,
		"instance": instance.ID(),
	})

	if err := run(ctx, cfg, logg, *serve, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "report run failed", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "salespulse shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, serve, once bool) error {
	res, err := bootstrap(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer res.close(logg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	jobMetrics := metrics.NewJobMetrics(reg)

	viewerOn := serve || cfg.Viewer.Addr != ""
	var holder *chart.Holder
	if viewerOn {
		holder = chart.NewHolder()
	}

	sinks, err := chartSinks(cfg, res, holder)
	if err != nil {
		return err
	}
	publisher, err := chart.NewPublisher(chart.Options{
		Width:  cfg.Chart.Width,
		Height: cfg.Chart.Height,
	}, logg, sinks...)
	if err != nil {
		return err
	}

	l, err := loader.New(res.engine, cfg.Tables, logg)
	if err != nil {
		return err
	}
	rfmAgg, err := rfm.NewAggregator(rfm.Params{
		Engine:     res.engine,
		Logger:     logg,
		Target:     cfg.Tables.RFMScores,
		SampleSize: cfg.Report.SampleSize,
		Output:     os.Stdout,
	})
	if err != nil {
		return err
	}
	trendAgg, err := trend.NewAggregator(res.engine, logg)
	if err != nil {
		return err
	}
	pipeline, err := jobs.NewPipeline(jobs.PipelineParams{
		Cache:     res.engine,
		Loader:    l,
		RFM:       rfmAgg,
		Trend:     trendAgg,
		Publisher: publisher,
		AsOf:      cfg.Report.AsOfDate,
	})
	if err != nil {
		return err
	}

	lock, err := runLock(cfg, res)
	if err != nil {
		return err
	}
	afterCycle := func(ctx context.Context, _ error) {
		writeTextfile(ctx, logg, cfg.Metrics.TextfilePath, reg)
	}
	service, err := jobs.NewService(jobs.ServiceParams{
		Logger:     logg,
		Registry:   jobs.NewRegistry(pipeline.Jobs()...),
		Lock:       lock,
		Metrics:    jobMetrics,
		Interval:   cfg.Report.Interval,
		Cleanup:    pipeline.Release,
		AfterCycle: afterCycle,
	})
	if err != nil {
		return err
	}

	viewerCtx, stopViewer := context.WithCancel(ctx)
	defer stopViewer()
	viewerErr := make(chan error, 1)
	if viewerOn {
		addr := cfg.Viewer.Addr
		if addr == "" {
			addr = defaultViewerAddr
		}
		handler := routes.NewRouter(cfg, logg, routes.Deps{
			Charts:   holder,
			Gatherer: reg,
			Checks:   res.checks(),
		})
		go func() { viewerErr <- api.ListenAndServe(viewerCtx, addr, handler, logg) }()
	}

	if cfg.Report.Interval > 0 && !once {
		logg.Info(logg.WithField(ctx, "interval", cfg.Report.Interval.String()), "starting scheduled report runs")
		err = service.Run(ctx)
	} else {
		err = service.RunOnce(ctx)
		writeTextfile(ctx, logg, cfg.Metrics.TextfilePath, reg)
		if err == nil && viewerOn {
			logg.Info(ctx, "report run complete; viewer stays up until interrupted")
			<-ctx.Done()
			err = ctx.Err()
		}
	}

	if viewerOn {
		stopViewer()
		if verr := <-viewerErr; verr != nil {
			logg.Error(ctx, "viewer stopped unexpectedly", verr)
		}
	}
	return err
}

func writeTextfile(ctx context.Context, logg *logger.Logger, path string, reg *prometheus.Registry) {
	if err := metrics.WriteTextfile(path, reg); err != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{"path": path, "error": err.Error()}), "metrics textfile not written")
	}
}
