package config

const EnvPrefix = "PACKFINDERZ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv       = "PACKFINDERZ_APP_ENV"
	EnvLogLevel     = "PACKFINDERZ_LOG_LEVEL"
	EnvDBDriver     = "PACKFINDERZ_DB_DRIVER"
	EnvDBDSN        = "PACKFINDERZ_DB_DSN"
	EnvRedisURL     = "PACKFINDERZ_REDIS_URL"
	EnvAPIBaseURL   = "PACKFINDERZ_API_BASE_URL"
	EnvAPITimeout   = "PACKFINDERZ_API_TIMEOUT"
	EnvSyncInterval = "PACKFINDERZ_SYNC_INTERVAL"
	EnvOrdersRemote = "PACKFINDERZ_ORDERS_REMOTE_SUBMISSION"
)
