package config

const (
	EnvPrefix = "DUMPSTERPOOL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv        = "DUMPSTERPOOL_APP_ENV"
	EnvPort          = "DUMPSTERPOOL_APP_PORT"
	EnvLogLevel      = "DUMPSTERPOOL_LOG_LEVEL"
	EnvPublicBaseURL = "DUMPSTERPOOL_PUBLIC_BASE_URL"

	EnvDBDSN    = "DUMPSTERPOOL_DB_DSN"
	EnvDBDriver = "DUMPSTERPOOL_DB_DRIVER"
	EnvDBHost   = "DUMPSTERPOOL_DB_HOST"
	EnvDBUser   = "DUMPSTERPOOL_DB_USER"
	EnvDBName   = "DUMPSTERPOOL_DB_NAME"
	EnvDBPass   = "DUMPSTERPOOL_DB_PASSWORD"

	EnvRedisURL = "DUMPSTERPOOL_REDIS_URL"

	EnvJWTSecret  = "DUMPSTERPOOL_JWT_SECRET"
	EnvJWTIssuer  = "DUMPSTERPOOL_JWT_ISSUER"
	EnvJWTExpMins = "DUMPSTERPOOL_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID          = "DUMPSTERPOOL_GCP_PROJECT_ID"
	EnvPubSubNotificationSub = "DUMPSTERPOOL_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvCardAccessSessionTTL  = "DUMPSTERPOOL_CARD_ACCESS_SESSION_TTL"
	EnvCardAccessMaxAttempts = "DUMPSTERPOOL_CARD_ACCESS_MAX_ATTEMPTS"
	EnvServiceFeeRate        = "DUMPSTERPOOL_SERVICE_FEE_RATE"
	EnvStripeAllowedMCCs     = "DUMPSTERPOOL_STRIPE_ISSUING_ALLOWED_CATEGORIES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
