package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "MOSAICMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MOSAICMART_APP_ENV"
	EnvPort     = "MOSAICMART_APP_PORT"
	EnvDBDSN    = "MOSAICMART_DB_DSN"
	EnvDBHost   = "MOSAICMART_DB_HOST"
	EnvDBUser   = "MOSAICMART_DB_USER"
	EnvDBName   = "MOSAICMART_DB_NAME"
	EnvRedisURL = "MOSAICMART_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
