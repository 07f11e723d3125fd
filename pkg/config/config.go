package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Backend    BackendConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Allocation AllocationConfig
	RateLimit  RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Allocation.validate(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FR_APP_ENV" required:"true"`
	Port         string `envconfig:"FR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FR_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FR_LOG_FORMAT" default:"json"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"FR_CORS_ORIGINS" default:"http://localhost:3000"`
}

// ConsoleLogs reports whether logs should be human-readable instead of JSON.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(a.LogFormat, "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the fundraiser order API.
type BackendConfig struct {
	BaseURL string        `envconfig:"FR_BACKEND_URL" required:"true"`
	Timeout time.Duration `envconfig:"FR_BACKEND_TIMEOUT" default:"30s"`
}

// AuthConfig describes the hosted identity provider.
type AuthConfig struct {
	TokenURL        string        `envconfig:"FR_AUTH_TOKEN_URL" required:"true"`
	ClientID        string        `envconfig:"FR_AUTH_CLIENT_ID" required:"true"`
	ClientSecret    string        `envconfig:"FR_AUTH_CLIENT_SECRET"`
	UsernameClaim   string        `envconfig:"FR_AUTH_USERNAME_CLAIM" default:"cognito:username"`
	GroupsClaim     string        `envconfig:"FR_AUTH_GROUPS_CLAIM" default:"cognito:groups"`
	AdminGroup      string        `envconfig:"FR_AUTH_ADMIN_GROUP" default:"FrAdmins"`
	RefreshInterval time.Duration `envconfig:"FR_AUTH_REFRESH_INTERVAL" default:"5m"`
	RefreshSkew     time.Duration `envconfig:"FR_AUTH_REFRESH_SKEW" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FR_REDIS_URL"`
	Address      string        `envconfig:"FR_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"FR_REDIS_PASSWORD"`
	DB           int           `envconfig:"FR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CacheConfig bounds how long session-scoped data lives in Redis.
type CacheConfig struct {
	SessionTTL time.Duration `envconfig:"FR_SESSION_TTL" default:"12h"`
	ConfigTTL  time.Duration `envconfig:"FR_CONFIG_CACHE_TTL" default:"12h"`
}

// RateLimitConfig throttles session creation per client address.
type RateLimitConfig struct {
	SessionWindow time.Duration `envconfig:"FR_RATE_LIMIT_SESSION_WINDOW" default:"1m"`
	SessionLimit  int           `envconfig:"FR_RATE_LIMIT_SESSION_LIMIT" default:"20"`
}

// AllocationConfig holds the troop payout policy.
type AllocationConfig struct {
	TroopShare     float64 `envconfig:"FR_ALLOCATION_TROOP_SHARE" default:"0.20"`
	InferDonations bool    `envconfig:"FR_ALLOCATION_INFER_DONATIONS" default:"true"`
}

func (a AllocationConfig) validate() error {
	if a.TroopShare < 0 || a.TroopShare > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", EnvAllocationTroopShare, a.TroopShare)
	}
	return nil
}
