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
	JoinRateLimit JoinRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Square        SquareConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	CardAccess    CardAccessConfig
	Funding       FundingConfig
	Maintenance   MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DUMPSTERPOOL_APP_ENV" required:"true"`
	Port         string `envconfig:"DUMPSTERPOOL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DUMPSTERPOOL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DUMPSTERPOOL_LOG_WARN_STACK" default:"false"`
	// PublicBaseURL is the web origin join links point at.
	PublicBaseURL string `envconfig:"DUMPSTERPOOL_PUBLIC_BASE_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DUMPSTERPOOL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DUMPSTERPOOL_DB_DSN"`
	Driver string `envconfig:"DUMPSTERPOOL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DUMPSTERPOOL_DB_HOST"`
	LegacyPort     int    `envconfig:"DUMPSTERPOOL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DUMPSTERPOOL_DB_USER"`
	LegacyPassword string `envconfig:"DUMPSTERPOOL_DB_PASSWORD"`
	LegacyName     string `envconfig:"DUMPSTERPOOL_DB_NAME"`
	LegacySSLMode  string `envconfig:"DUMPSTERPOOL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DUMPSTERPOOL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DUMPSTERPOOL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DUMPSTERPOOL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DUMPSTERPOOL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DUMPSTERPOOL_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"DUMPSTERPOOL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DUMPSTERPOOL_REDIS_ADDR"`
	Password     string        `envconfig:"DUMPSTERPOOL_REDIS_PASSWORD"`
	DB           int           `envconfig:"DUMPSTERPOOL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DUMPSTERPOOL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DUMPSTERPOOL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DUMPSTERPOOL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DUMPSTERPOOL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DUMPSTERPOOL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DUMPSTERPOOL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DUMPSTERPOOL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DUMPSTERPOOL_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type JoinRateLimitConfig struct {
	Window     time.Duration `envconfig:"DUMPSTERPOOL_JOIN_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"DUMPSTERPOOL_JOIN_RATE_LIMIT_IP_LIMIT" default:"30"`
	TokenLimit int           `envconfig:"DUMPSTERPOOL_JOIN_RATE_LIMIT_TOKEN_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DUMPSTERPOOL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DUMPSTERPOOL_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"DUMPSTERPOOL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DUMPSTERPOOL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DUMPSTERPOOL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DUMPSTERPOOL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"DUMPSTERPOOL_PUBSUB_NOTIFICATION_TOPIC" default:"dp-notification-events"`
	NotificationSubscription string `envconfig:"DUMPSTERPOOL_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	GroupTopic               string `envconfig:"DUMPSTERPOOL_PUBSUB_GROUP_TOPIC" default:"dp-group-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DUMPSTERPOOL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DUMPSTERPOOL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DUMPSTERPOOL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"DUMPSTERPOOL_STRIPE_API_KEY"`
	WebhookSecret  string        `envconfig:"DUMPSTERPOOL_STRIPE_SECRET"`
	Env            string        `envconfig:"DUMPSTERPOOL_STRIPE_ENV" default:"test"`
	CardholderID   string        `envconfig:"DUMPSTERPOOL_STRIPE_ISSUING_CARDHOLDER_ID"`
	Currency       string        `envconfig:"DUMPSTERPOOL_STRIPE_ISSUING_CURRENCY" default:"usd"`
	AllowedMCCs    []string      `envconfig:"DUMPSTERPOOL_STRIPE_ISSUING_ALLOWED_CATEGORIES" default:"rental_and_leasing_services"`
	APIVersion     string        `envconfig:"DUMPSTERPOOL_STRIPE_API_VERSION" default:"2024-06-20"`
	GatewayTimeout time.Duration `envconfig:"DUMPSTERPOOL_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken    string        `envconfig:"DUMPSTERPOOL_SQUARE_ACCESS_TOKEN"`
	Env            string        `envconfig:"DUMPSTERPOOL_SQUARE_ENV" default:"sandbox"`
	LocationID     string        `envconfig:"DUMPSTERPOOL_SQUARE_LOCATION_ID"`
	WebhookSecret  string        `envconfig:"DUMPSTERPOOL_SQUARE_WEBHOOK_SECRET"`
	GatewayTimeout time.Duration `envconfig:"DUMPSTERPOOL_SQUARE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"DUMPSTERPOOL_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"DUMPSTERPOOL_SENDGRID_FROM_EMAIL" default:"no-reply@dumpsterpool.app"`
	FromName    string `envconfig:"DUMPSTERPOOL_SENDGRID_FROM_NAME" default:"DumpsterPool"`
}

type CardAccessConfig struct {
	SessionTTL  time.Duration `envconfig:"DUMPSTERPOOL_CARD_ACCESS_SESSION_TTL" default:"15m"`
	MaxAttempts int           `envconfig:"DUMPSTERPOOL_CARD_ACCESS_MAX_ATTEMPTS" default:"3"`
	Cooldown    time.Duration `envconfig:"DUMPSTERPOOL_CARD_ACCESS_COOLDOWN" default:"30m"`
	MinSpacing  time.Duration `envconfig:"DUMPSTERPOOL_CARD_ACCESS_MIN_SPACING" default:"5s"`
}

type FundingConfig struct {
	ServiceFeeRate string `envconfig:"DUMPSTERPOOL_SERVICE_FEE_RATE" default:"0.10"`
	Currency       string `envconfig:"DUMPSTERPOOL_CURRENCY" default:"USD"`
}

// MaintenanceConfig drives the cron worker's retention jobs.
type MaintenanceConfig struct {
	Interval          time.Duration `envconfig:"DUMPSTERPOOL_MAINTENANCE_INTERVAL" default:"24h"`
	OutboxRetention   time.Duration `envconfig:"DUMPSTERPOOL_OUTBOX_RETENTION" default:"720h"`
	DeliveryRetention time.Duration `envconfig:"DUMPSTERPOOL_NOTIFICATION_DELIVERY_RETENTION" default:"2160h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:dumpsterpool.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
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
