package config

const (
	EnvPrefix = "SHARE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv                 = "SHARE_APP_ENV"
	EnvPort                   = "SHARE_APP_PORT"
	EnvDBDSN                  = "SHARE_DB_DSN"
	EnvDBHost                 = "SHARE_DB_HOST"
	EnvDBUser                 = "SHARE_DB_USER"
	EnvDBName                 = "SHARE_DB_NAME"
	EnvUseSQLite              = "SHARE_USE_SQLITE"
	EnvRedisURL               = "SHARE_REDIS_URL"
	EnvRedisAddr              = "SHARE_REDIS_ADDR"
	EnvJWTSecret              = "SHARE_JWT_SECRET"
	EnvJWTIssuer              = "SHARE_JWT_ISSUER"
	EnvJWTExpMins             = "SHARE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SHARE_REFRESH_TOKEN_TTL_MINUTES"
	EnvLocalStoreMedium       = "SHARE_LOCAL_STORE_MEDIUM"
	EnvLocalStorePath         = "SHARE_LOCAL_STORE_PATH"
	EnvOTPProvider            = "SHARE_OTP_PROVIDER"
	EnvOTPHMACKey             = "SHARE_OTP_HMAC_KEY"
	EnvOTPRelaySendURL        = "SHARE_OTP_RELAY_SEND_URL"
	EnvOTPRelayVerifyURL      = "SHARE_OTP_RELAY_VERIFY_URL"
	EnvGCPProjectID           = "SHARE_GCP_PROJECT_ID"
	EnvPubSubEventsTopic      = "SHARE_PUBSUB_EVENTS_TOPIC"
	EnvGCSBucketName          = "SHARE_GCS_BUCKET_NAME"

	LocalMediumMemory = "memory"
	LocalMediumFile   = "file"
	LocalMediumRedis  = "redis"

	OTPProviderLocal  = "local"
	OTPProviderRelay  = "relay"
	OTPProviderHosted = "hosted"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
