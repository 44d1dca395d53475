package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "DROPSHIP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DROPSHIP_DB_DSN"
	EnvDBHost = "DROPSHIP_DB_HOST"
	EnvDBUser = "DROPSHIP_DB_USER"
	EnvDBName = "DROPSHIP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Fulfillment  FulfillmentConfig
	Suppliers    SuppliersConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"DROPSHIP_APP_ENV" required:"true"`
	Port         string `envconfig:"DROPSHIP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DROPSHIP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DROPSHIP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DROPSHIP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DROPSHIP_DB_DSN"`
	Driver string `envconfig:"DROPSHIP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DROPSHIP_DB_HOST"`
	LegacyPort     int    `envconfig:"DROPSHIP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DROPSHIP_DB_USER"`
	LegacyPassword string `envconfig:"DROPSHIP_DB_PASSWORD"`
	LegacyName     string `envconfig:"DROPSHIP_DB_NAME"`
	LegacySSLMode  string `envconfig:"DROPSHIP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DROPSHIP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DROPSHIP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DROPSHIP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DROPSHIP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DROPSHIP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DROPSHIP_REDIS_ADDR"`
	Password     string        `envconfig:"DROPSHIP_REDIS_PASSWORD"`
	DB           int           `envconfig:"DROPSHIP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DROPSHIP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DROPSHIP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DROPSHIP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DROPSHIP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DROPSHIP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries what the API needs to validate bearer tokens issued by
// the external auth service. Token issuance lives outside this backend.
type JWTConfig struct {
	Secret string `envconfig:"DROPSHIP_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"DROPSHIP_JWT_ISSUER" required:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DROPSHIP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DROPSHIP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DROPSHIP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"DROPSHIP_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"DROPSHIP_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

// FulfillmentConfig tunes the orchestrator, retry scheduler, and reconciler.
type FulfillmentConfig struct {
	MaxAttempts         int           `envconfig:"DROPSHIP_FULFILLMENT_MAX_ATTEMPTS" default:"5"`
	RetryBackoffBase    time.Duration `envconfig:"DROPSHIP_FULFILLMENT_RETRY_BACKOFF_BASE" default:"2m"`
	RetryBackoffCap     time.Duration `envconfig:"DROPSHIP_FULFILLMENT_RETRY_BACKOFF_CAP" default:"2h"`
	RetryInterval       time.Duration `envconfig:"DROPSHIP_FULFILLMENT_RETRY_INTERVAL" default:"1h"`
	ReconcileInterval   time.Duration `envconfig:"DROPSHIP_FULFILLMENT_RECONCILE_INTERVAL" default:"30m"`
	ProductSyncInterval time.Duration `envconfig:"DROPSHIP_CATALOG_SYNC_INTERVAL" default:"6h"`
	BatchSize           int           `envconfig:"DROPSHIP_FULFILLMENT_BATCH_SIZE" default:"100"`
	TaskDeadline        time.Duration `envconfig:"DROPSHIP_FULFILLMENT_TASK_DEADLINE" default:"5m"`
	RecordLeaseTTL      time.Duration `envconfig:"DROPSHIP_FULFILLMENT_RECORD_LEASE_TTL" default:"5m"`
}

// SuppliersConfig tunes the connector transport shared by all suppliers.
type SuppliersConfig struct {
	RequestTimeout time.Duration `envconfig:"DROPSHIP_SUPPLIER_REQUEST_TIMEOUT" default:"15s"`
	MaxRetries     int           `envconfig:"DROPSHIP_SUPPLIER_MAX_RETRIES" default:"3"`
	BackoffBase    time.Duration `envconfig:"DROPSHIP_SUPPLIER_BACKOFF_BASE" default:"2s"`
	BackoffCap     time.Duration `envconfig:"DROPSHIP_SUPPLIER_BACKOFF_CAP" default:"8s"`
	ProductLimit   int           `envconfig:"DROPSHIP_SUPPLIER_PRODUCT_LIMIT" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DROPSHIP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
