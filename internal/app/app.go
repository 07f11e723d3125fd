// Package app assembles the services shared by the API server, the cron worker and frctl.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/troopfundraiser/frclient/api/routes"
	"github.com/troopfundraiser/frclient/internal/allocation"
	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/leaderboard"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/internal/timecards"
	"github.com/troopfundraiser/frclient/internal/users"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	"github.com/troopfundraiser/frclient/pkg/backend"
	"github.com/troopfundraiser/frclient/pkg/config"
	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/metrics"
	"github.com/troopfundraiser/frclient/pkg/redis"
)

type App struct {
	Config      *config.Config
	Logger      *logger.Logger
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	Sessions    *session.Manager
	Backend     *backend.Client
	ConfigCache *frconfig.Cache
	Orders      *orders.Stores
	Reader      *orders.Store
	TimeCards   *timecards.Client
	Leaderboard *leaderboard.Client
	Users       *users.Client
	Allocation  *allocation.Service
}

// New connects to Redis and wires every service. Metrics go to reg when it is non-nil.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger, reg *prometheus.Registry) (*App, error) {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	a, err := wire(cfg, logg, redisClient, reg)
	if err != nil {
		return nil, multierr.Append(err, redisClient.Close())
	}
	return a, nil
}

func wire(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, reg *prometheus.Registry) (*App, error) {
	refresher, err := session.NewOAuthRefresher(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("create token refresher: %w", err)
	}
	sessions, err := session.NewManager(session.ManagerParams{
		Redis:     redisClient,
		Auth:      cfg.Auth,
		TTL:       cfg.Cache.SessionTTL,
		Refresher: refresher,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	var (
		backendMetrics *metrics.BackendMetrics
		gatherer       prometheus.Gatherer
	)
	if reg != nil {
		backendMetrics = metrics.NewBackendMetrics(reg)
		gatherer = reg
	}
	client, err := backend.NewClient(cfg.Backend.BaseURL, sessions,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithMetrics(backendMetrics),
		backend.WithLogger(logg),
	)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	cache, err := frconfig.NewCache(redisClient, client, cfg.Cache.ConfigTTL, logg)
	if err != nil {
		return nil, fmt.Errorf("create config cache: %w", err)
	}
	stores, err := orders.NewStores(client, sessions, logg, orders.WithIdleTTL(cfg.Cache.SessionTTL))
	if err != nil {
		return nil, fmt.Errorf("create order stores: %w", err)
	}
	reader, err := orders.NewStore(client, sessions, logg)
	if err != nil {
		return nil, fmt.Errorf("create order reader: %w", err)
	}

	sessions.OnLogout(cache.Invalidate)
	sessions.OnLogout(stores.Forget)

	tc := timecards.NewClient(client)
	usersClient := users.NewClient(client)
	alloc, err := allocation.NewService(allocation.ServiceParams{
		Engine:    allocation.NewEngine(allocation.PolicyFromConfig(cfg.Allocation)),
		Orders:    reader,
		TimeCards: tc,
		Releaser:  usersClient,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create allocation service: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      logg,
		Redis:       redisClient,
		Gatherer:    gatherer,
		Sessions:    sessions,
		Backend:     client,
		ConfigCache: cache,
		Orders:      stores,
		Reader:      reader,
		TimeCards:   tc,
		Leaderboard: leaderboard.NewClient(client),
		Users:       usersClient,
		Allocation:  alloc,
	}, nil
}

// Router builds the HTTP API.
func (a *App) Router() http.Handler {
	return routes.NewRouter(routes.Deps{
		Config:      a.Config,
		Logger:      a.Logger,
		Redis:       a.Redis,
		Idempotency: a.Redis,
		RateLimits:  a.Redis,
		Sessions:    a.Sessions,
		ConfigCache: a.ConfigCache,
		Orders:      a.Orders,
		TimeCards:   a.TimeCards,
		Leaderboard: a.Leaderboard,
		Users:       a.Users,
		Allocation:  a.Allocation,
		Gatherer:    a.Gatherer,
	})
}

func (a *App) Close() error {
	return a.Redis.Close()
}
