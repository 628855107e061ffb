package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/salespulse/api/controllers"
	"github.com/angelmondragon/salespulse/api/middleware"
	"github.com/angelmondragon/salespulse/pkg/config"
	"github.com/angelmondragon/salespulse/pkg/logger"
)

// Deps are the collaborators the viewer routes read from.
type Deps struct {
	Charts   controllers.ChartSource
	Gatherer prometheus.Gatherer
	Checks   map[string]controllers.Pinger
	Title    string
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Get("/", controllers.ChartPage(deps.Charts, deps.Title, logg))
	r.Get("/chart.svg", controllers.ChartSVG(deps.Charts, logg))
	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, deps.Checks))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
