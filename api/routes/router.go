package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/troopfundraiser/frclient/api/controllers"
	"github.com/troopfundraiser/frclient/api/middleware"
	"github.com/troopfundraiser/frclient/internal/allocation"
	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/leaderboard"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/internal/timecards"
	"github.com/troopfundraiser/frclient/internal/users"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	"github.com/troopfundraiser/frclient/pkg/config"
	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/redis"
)

type sessionManager interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Create(ctx context.Context, tokens session.Tokens) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// Deps are the services behind the API.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Redis       redis.Pinger
	Idempotency redis.IdempotencyStore
	RateLimits  redis.RateLimitStore
	Sessions    sessionManager
	ConfigCache *frconfig.Cache
	Orders      *orders.Stores
	TimeCards   *timecards.Client
	Leaderboard *leaderboard.Client
	Users       *users.Client
	Allocation  *allocation.Service
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Redis))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := middleware.Idempotency(deps.Idempotency, logg)
	sessionLimit := middleware.NewRateLimitPolicy("session", cfg.RateLimit.SessionWindow, cfg.RateLimit.SessionLimit)

	orderStores := controllers.OrderStores(func(sessionID string) controllers.OrderStore {
		return deps.Orders.For(sessionID)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(sessionLimit, deps.RateLimits, logg)).
			Post("/session", controllers.SessionCreate(deps.Sessions, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(deps.Sessions, logg))

			r.Delete("/session", controllers.SessionDelete(deps.Sessions, logg))
			r.Get("/me", controllers.UserInfo(deps.Users, logg))
			r.Get("/config", controllers.FundraiserConfig(deps.ConfigCache, logg))
			r.Get("/leaderboard", controllers.Leaderboard(deps.Leaderboard, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(orderStores, logg))
				r.With(idempotent).Post("/", controllers.UpsertOrder(orderStores, deps.ConfigCache, logg))
				r.Delete("/{orderId}", controllers.DeleteOrder(orderStores, logg))
				r.With(idempotent).Post("/{orderId}/spreading", controllers.SpreadingComplete(orderStores, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin(logg))
					r.Post("/verification", controllers.VerifyOrders(orderStores, logg))
					r.Post("/{orderId}/verification", controllers.VerifyOrder(orderStores, logg))
				})
			})

			r.Get("/reports/{view}", controllers.Report(orderStores, deps.ConfigCache, logg))
			r.Get("/timecards", controllers.ListTimeCards(deps.TimeCards, deps.ConfigCache, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.With(idempotent).Post("/timecards", controllers.SaveTimeCards(deps.TimeCards, logg))
				r.Delete("/timecards", controllers.DeleteTimeCard(deps.TimeCards, logg))
				r.Post("/allocation", controllers.ComputeAllocation(deps.Allocation, deps.ConfigCache, logg))
				r.With(idempotent).Post("/allocation/release", controllers.ReleaseFunds(deps.Allocation, deps.ConfigCache, logg))
			})
		})
	})

	return r
}
