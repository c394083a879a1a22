package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-shopper/api/controllers"
	"github.com/angelmondragon/packfinderz-shopper/api/middleware"
	"github.com/angelmondragon/packfinderz-shopper/internal/catalog"
	"github.com/angelmondragon/packfinderz-shopper/internal/scheduler"
	"github.com/angelmondragon/packfinderz-shopper/pkg/config"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

// Catalog is the slice of the catalog components the ops endpoints read.
type Catalog interface {
	Count(ctx context.Context) (int64, error)
	LastSyncedAt(ctx context.Context) (time.Time, bool, error)
}

// Syncer triggers a manual catalog sync.
type Syncer interface {
	Sync(ctx context.Context) ([]catalog.Product, error)
}

// Jobs lists scheduled background work.
type Jobs interface {
	Scheduled(ctx context.Context) ([]scheduler.Entry, error)
}

// Params wires the ops router. Redis is optional.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Catalog  Catalog
	Syncer   Syncer
	Jobs     Jobs
	Gatherer prometheus.Gatherer
}

// NewRouter builds the ops HTTP surface of the catalog sync host.
func NewRouter(params Params) http.Handler {
	logg := params.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
	)

	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, logg, deps))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/catalog", func(r chi.Router) {
		if params.Catalog != nil {
			r.Get("/status", controllers.CatalogStatus(logg, params.Catalog, params.Jobs))
		}
		if params.Syncer != nil {
			r.Post("/sync", controllers.TriggerSync(logg, params.Syncer))
		}
	})

	return r
}
