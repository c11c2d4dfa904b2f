package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muebleria/cotizador-backend/api/controllers"
	"github.com/muebleria/cotizador-backend/api/middleware"
	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/internal/sales"
	"github.com/muebleria/cotizador-backend/pkg/config"
	"github.com/muebleria/cotizador-backend/pkg/db"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/metrics"
	"github.com/muebleria/cotizador-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	catalogService catalog.Service,
	salesService sales.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.CORS),
	)

	// Keep the interfaces nil when redis is disabled.
	var (
		idempotencyStore middleware.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
		redisPinger      db.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiterStore = redisClient
		redisPinger = redisClient
	}

	salesPolicy := middleware.NewRateLimitPolicy(
		"sales",
		cfg.Settlement.RateLimitWindow,
		cfg.Settlement.RateLimitPerIP,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]db.Pinger{
			"db":    dbP,
			"redis": redisPinger,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(catalogService, logg))
			r.Post("/", controllers.CreateItem(catalogService, logg))
			r.Post("/{itemId}/activate", controllers.SetItemStatus(catalogService, enums.ItemStatusActive, logg))
			r.Post("/{itemId}/deactivate", controllers.SetItemStatus(catalogService, enums.ItemStatusInactive, logg))
		})

		r.Route("/modifiers", func(r chi.Router) {
			r.Get("/", controllers.ListModifiers(catalogService, logg))
			r.Post("/", controllers.CreateModifier(catalogService, logg))
		})

		r.Post("/quotes", controllers.CreateQuote(salesService, logg))

		r.With(
			middleware.RateLimit(salesPolicy, limiterStore, logg),
			middleware.Idempotency(idempotencyStore, cfg.Settlement.IdempotencyTTL, logg),
		).Post("/sales", controllers.SettleSale(salesService, logg))
		r.Get("/sales/{saleId}", controllers.GetSale(salesService, logg))
	})

	return r
}
