package frconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/troopfundraiser/frclient/pkg/backend"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
	redisclient "github.com/troopfundraiser/frclient/pkg/redis"
)

// ErrConfigUnavailable is returned by Get when nothing has been loaded for the session.
var ErrConfigUnavailable = pkgerrors.New(pkgerrors.CodeConfigUnavailable, "configuration unavailable")

type cacheStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type cacheKeyer interface {
	ConfigKey(sessionID string) string
}

// Cache keeps one configuration per session in Redis.
type Cache struct {
	store  cacheStore
	keyer  cacheKeyer
	caller backend.Caller
	ttl    time.Duration
	logg   *logger.Logger
}

func NewCache(client *redisclient.Client, caller backend.Caller, ttl time.Duration, logg *logger.Logger) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newCache(client, client, caller, ttl, logg)
}

func newCache(store cacheStore, keyer cacheKeyer, caller backend.Caller, ttl time.Duration, logg *logger.Logger) (*Cache, error) {
	if caller == nil {
		return nil, fmt.Errorf("backend caller is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("config ttl must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Cache{store: store, keyer: keyer, caller: caller, ttl: ttl, logg: logg}, nil
}

// Load returns the session's cached configuration, fetching /getconfig only on a miss.
// ctx must carry the session credentials used by the backend caller.
func (c *Cache) Load(ctx context.Context, sessionID string) (*Config, error) {
	cfg, err := c.Get(ctx, sessionID)
	if err == nil {
		return cfg, nil
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeConfigUnavailable) {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.caller.Post(ctx, backend.EndpointGetConfig, struct{}{}, &raw); err != nil {
		return nil, err
	}
	cfg, err = Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, c.keyer.ConfigKey(sessionID), string(raw), c.ttl); err != nil {
		c.logg.Error(c.logg.WithSessionID(ctx, sessionID), "failed to cache fundraiser config", err)
	}
	c.logg.Info(c.logg.WithSessionID(ctx, sessionID), "fundraiser config loaded")
	return cfg, nil
}

// Get never touches the network.
func (c *Cache) Get(ctx context.Context, sessionID string) (*Config, error) {
	if sessionID == "" {
		return nil, ErrConfigUnavailable
	}
	raw, err := c.store.Get(ctx, c.keyer.ConfigKey(sessionID))
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, ErrConfigUnavailable
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cached config")
	}
	return Decode([]byte(raw))
}

// Invalidate drops the cached copy. It matches session.LogoutHook.
func (c *Cache) Invalidate(ctx context.Context, sessionID string) error {
	return c.store.Del(ctx, c.keyer.ConfigKey(sessionID))
}
