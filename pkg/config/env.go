package config

const EnvPrefix = "COTIZADOR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Variables read directly by tests and error messages.
const (
	EnvAppEnv = "COTIZADOR_APP_ENV"
	EnvPort   = "COTIZADOR_APP_PORT"

	EnvDBDSN  = "COTIZADOR_DB_DSN"
	EnvDBHost = "COTIZADOR_DB_HOST"
	EnvDBUser = "COTIZADOR_DB_USER"
	EnvDBName = "COTIZADOR_DB_NAME"

	EnvUseSQLite = "COTIZADOR_USE_SQLITE"
	EnvRedisURL  = "COTIZADOR_REDIS_URL"

	EnvSettlementBaseURL       = "COTIZADOR_SETTLEMENT_BASE_URL"
	EnvSettlementClientTimeout = "COTIZADOR_SETTLEMENT_CLIENT_TIMEOUT"

	EnvCORSAllowedOrigins = "COTIZADOR_CORS_ALLOWED_ORIGINS"
)
