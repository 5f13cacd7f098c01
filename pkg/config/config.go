package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Courier CourierConfig
	GCS     GCSConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Escrow  EscrowConfig
	Payout  PayoutConfig
	Outbox  OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Escrow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"OJA_APP_ENV" required:"true"`
	Port         string `envconfig:"OJA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"OJA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OJA_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"OJA_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"OJA_DB_DSN"`

	Host     string `envconfig:"OJA_DB_HOST"`
	Port     int    `envconfig:"OJA_DB_PORT" default:"5432"`
	User     string `envconfig:"OJA_DB_USER"`
	Password string `envconfig:"OJA_DB_PASSWORD"`
	Name     string `envconfig:"OJA_DB_NAME"`
	SSLMode  string `envconfig:"OJA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"OJA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OJA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OJA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OJA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"OJA_REDIS_URL" required:"true"`
	Password     string        `envconfig:"OJA_REDIS_PASSWORD"`
	DB           int           `envconfig:"OJA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OJA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OJA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OJA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OJA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OJA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"OJA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"OJA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"OJA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CourierConfig points at the logistics provider used for shipment
// creation and tracking.
type CourierConfig struct {
	BaseURL        string        `envconfig:"OJA_COURIER_BASE_URL" required:"true"`
	APIKey         string        `envconfig:"OJA_COURIER_API_KEY" required:"true"`
	RequestTimeout time.Duration `envconfig:"OJA_COURIER_REQUEST_TIMEOUT" default:"10s"`
	WebhookSecret  string        `envconfig:"OJA_COURIER_WEBHOOK_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"OJA_COURIER_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"OJA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"OJA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"OJA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	ProofBucket string `envconfig:"OJA_GCS_PROOF_BUCKET" required:"true"`
}

type PubSubConfig struct {
	SettlementTopic        string `envconfig:"OJA_PUBSUB_SETTLEMENT_TOPIC" required:"true"`
	SettlementSubscription string `envconfig:"OJA_PUBSUB_SETTLEMENT_SUBSCRIPTION" required:"true"`
}

// EscrowConfig carries the platform fee policy. The fee is a percentage of
// the order subtotal, rounded half-up to whole kobo; delivery cost passes
// through to the vendor untouched.
type EscrowConfig struct {
	PlatformFeePercent int           `envconfig:"OJA_ESCROW_PLATFORM_FEE_PERCENT" default:"10"`
	AutoReleaseWindow  time.Duration `envconfig:"OJA_ESCROW_AUTO_RELEASE_WINDOW" default:"168h"`
}

func (e EscrowConfig) validate() error {
	if e.PlatformFeePercent < 0 || e.PlatformFeePercent > 100 {
		return fmt.Errorf("platform fee percent must be within [0,100], got %d", e.PlatformFeePercent)
	}
	return nil
}

type PayoutConfig struct {
	MinAmountKobo int64 `envconfig:"OJA_PAYOUT_MIN_AMOUNT_KOBO" default:"100000"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"OJA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"OJA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"OJA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
