package config

const (
	// EnvPrefix is handed to envconfig; every field carries an explicit FR_* name.
	EnvPrefix = "FR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv               = "FR_APP_ENV"
	EnvPort                 = "FR_APP_PORT"
	EnvLogLevel             = "FR_LOG_LEVEL"
	EnvBackendURL           = "FR_BACKEND_URL"
	EnvBackendTimeout       = "FR_BACKEND_TIMEOUT"
	EnvAuthTokenURL         = "FR_AUTH_TOKEN_URL"
	EnvAuthClientID         = "FR_AUTH_CLIENT_ID"
	EnvAuthAdminGroup       = "FR_AUTH_ADMIN_GROUP"
	EnvRedisURL             = "FR_REDIS_URL"
	EnvSessionTTL           = "FR_SESSION_TTL"
	EnvAllocationTroopShare = "FR_ALLOCATION_TROOP_SHARE"
	EnvAllocationInfer      = "FR_ALLOCATION_INFER_DONATIONS"
)
