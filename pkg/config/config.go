package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	LocalStore    LocalStoreConfig
	DevAuth       DevAuthConfig
	OTP           OTPConfig
	CORS          CORSConfig
	GCP           GCPConfig
	Storage       StorageConfig
	PubSub        PubSubConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validateStruct(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.UseSQLite && !cfg.DB.Configured() {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.LocalStore.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if err := cfg.OTP.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HostedConfigured reports whether the hosted relational backend is configured.
// Every store selection in the process keys off this one check.
func (c *Config) HostedConfigured() bool {
	if c == nil {
		return false
	}
	return c.DB.Configured() || c.FeatureFlags.UseSQLite
}

type AppConfig struct {
	Env          string `envconfig:"SHARE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHARE_APP_PORT" default:"8080" validate:"numeric"`
	LogLevel     string `envconfig:"SHARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHARE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHARE_LOG_FORMAT" default:"json" validate:"oneof=json console"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SHARE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHARE_DB_DSN"`
	Driver string `envconfig:"SHARE_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	LegacyHost     string `envconfig:"SHARE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHARE_DB_USER"`
	LegacyPassword string `envconfig:"SHARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHARE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SHARE_SQLITE_PATH" default:"file:share.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"SHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SHARE_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// Configured reports whether a postgres DSN is available.
func (db DBConfig) Configured() bool {
	return strings.TrimSpace(db.DSN) != ""
}

type RedisConfig struct {
	URL          string        `envconfig:"SHARE_REDIS_URL"`
	Address      string        `envconfig:"SHARE_REDIS_ADDR"`
	Password     string        `envconfig:"SHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a redis endpoint was provided.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret                 string `envconfig:"SHARE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHARE_JWT_ISSUER" default:"abundant-share"`
	ExpirationMinutes      int    `envconfig:"SHARE_JWT_EXPIRATION_MINUTES" default:"60" validate:"gt=0"`
	RefreshTokenTTLMinutes int    `envconfig:"SHARE_REFRESH_TOKEN_TTL_MINUTES" default:"43200" validate:"gtfield=ExpirationMinutes"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHARE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHARE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHARE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHARE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHARE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHARE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHARE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	PhoneCodeWindow    time.Duration `envconfig:"SHARE_AUTH_RATE_LIMIT_PHONE_CODE_WINDOW" default:"1h"`
	PhoneCodeLimit     int           `envconfig:"SHARE_AUTH_RATE_LIMIT_PHONE_CODE_LIMIT" default:"5"`
	PhoneCodeIPLimit   int           `envconfig:"SHARE_AUTH_RATE_LIMIT_PHONE_CODE_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHARE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHARE_AUTO_MIGRATE" default:"false"`
	AutoSeed    bool `envconfig:"SHARE_AUTO_SEED" default:"false"`
}

// LocalStoreConfig selects the medium behind the Local Device Store.
type LocalStoreConfig struct {
	Medium    string `envconfig:"SHARE_LOCAL_STORE_MEDIUM" default:"file"`
	Path      string `envconfig:"SHARE_LOCAL_STORE_PATH" default:".share-local.json"`
	KeyPrefix string `envconfig:"SHARE_LOCAL_STORE_KEY_PREFIX" default:"share:local"`
}

func (l LocalStoreConfig) validate(redis RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Medium)) {
	case LocalMediumMemory:
		return nil
	case LocalMediumFile:
		if strings.TrimSpace(l.Path) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvLocalStorePath, EnvLocalStoreMedium, LocalMediumFile)
		}
		return nil
	case LocalMediumRedis:
		if !redis.Configured() {
			return fmt.Errorf("%s or %s is required when %s=%s", EnvRedisURL, EnvRedisAddr, EnvLocalStoreMedium, LocalMediumRedis)
		}
		return nil
	default:
		return fmt.Errorf("invalid %s %q", EnvLocalStoreMedium, l.Medium)
	}
}

// DevAuthConfig holds the fixed bypass credential pair honoured in dev only.
type DevAuthConfig struct {
	Email    string `envconfig:"SHARE_DEV_AUTH_EMAIL" default:"sivaarunkumar23@gmail.com"`
	Password string `envconfig:"SHARE_DEV_AUTH_PASSWORD" default:"siva@1234"`
	Disabled bool   `envconfig:"SHARE_DEV_AUTH_DISABLED" default:"false"`
}

type OTPConfig struct {
	Provider      string        `envconfig:"SHARE_OTP_PROVIDER"`
	TTL           time.Duration `envconfig:"SHARE_OTP_TTL" default:"5m"`
	MaxAttempts   int           `envconfig:"SHARE_OTP_MAX_ATTEMPTS" default:"5" validate:"min=1"`
	HMACKey       string        `envconfig:"SHARE_OTP_HMAC_KEY"`
	DevCode       string        `envconfig:"SHARE_OTP_DEV_CODE"`
	RelaySendURL  string        `envconfig:"SHARE_OTP_RELAY_SEND_URL"`
	RelayCheckURL string        `envconfig:"SHARE_OTP_RELAY_VERIFY_URL"`
	RelayToken    string        `envconfig:"SHARE_OTP_RELAY_TOKEN"`
	RelayTimeout  time.Duration `envconfig:"SHARE_OTP_RELAY_TIMEOUT" default:"10s"`
}

func (o OTPConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Provider)) {
	case "", OTPProviderLocal:
		return nil
	case OTPProviderHosted:
		if o.HMACKey == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvOTPHMACKey, EnvOTPProvider, OTPProviderHosted)
		}
		return nil
	case OTPProviderRelay:
		if o.RelaySendURL == "" || o.RelayCheckURL == "" {
			return fmt.Errorf("%s and %s are required when %s=%s", EnvOTPRelaySendURL, EnvOTPRelayVerifyURL, EnvOTPProvider, OTPProviderRelay)
		}
		return nil
	default:
		return fmt.Errorf("invalid %s %q", EnvOTPProvider, o.Provider)
	}
}

// ResolvedProvider picks the one-time code provider, defaulting by store mode.
func (o OTPConfig) ResolvedProvider(hosted bool) string {
	provider := strings.ToLower(strings.TrimSpace(o.Provider))
	if provider != "" {
		return provider
	}
	if hosted && o.HMACKey != "" {
		return OTPProviderHosted
	}
	return OTPProviderLocal
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SHARE_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHARE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SHARE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHARE_GOOGLE_APPLICATION_CREDENTIALS"`
}

// StorageConfig points listing image uploads at a GCS bucket. An empty
// bucket disables the upload routes.
type StorageConfig struct {
	BucketName      string        `envconfig:"SHARE_GCS_BUCKET_NAME"`
	UploadURLExpiry time.Duration `envconfig:"SHARE_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	MaxImageBytes   int64         `envconfig:"SHARE_GCS_MAX_IMAGE_BYTES" default:"10485760" validate:"gt=0"`
	PublicBaseURL   string        `envconfig:"SHARE_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com" validate:"url"`
}

// Enabled reports whether a bucket is configured.
func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.BucketName) != ""
}

type PubSubConfig struct {
	EventsTopic  string        `envconfig:"SHARE_PUBSUB_EVENTS_TOPIC"`
	EmulatorHost string        `envconfig:"SHARE_PUBSUB_EMULATOR_HOST"`
	CreateTopic  bool          `envconfig:"SHARE_PUBSUB_CREATE_TOPIC" default:"false"`
	BatchDelay   time.Duration `envconfig:"SHARE_PUBSUB_BATCH_DELAY" default:"50ms"`
	BatchCount   int           `envconfig:"SHARE_PUBSUB_BATCH_COUNT" default:"100" validate:"min=0"`
}

// Enabled reports whether change events should be forwarded to Pub/Sub.
func (p PubSubConfig) Enabled(gcp GCPConfig) bool {
	return strings.TrimSpace(p.EventsTopic) != "" && strings.TrimSpace(gcp.ProjectID) != ""
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"SHARE_CRON_INTERVAL" default:"15m" validate:"gt=0"`
	LockTTL     time.Duration `envconfig:"SHARE_CRON_LOCK_TTL" default:"10m"`
	SweepBatch  int           `envconfig:"SHARE_CRON_SWEEP_BATCH" default:"500" validate:"min=1,max=10000"`
	RunOnBootup bool          `envconfig:"SHARE_CRON_RUN_ON_BOOT" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	provided := 0
	missing := []string{}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
			continue
		}
		provided++
	}

	// no hosted backend configured at all: the process runs on the local store.
	if provided == 0 {
		return nil
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
