package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Locks      LockConfig
	Tasks      TaskConfig
	DeadLetter DeadLetterConfig
	Catalog    CatalogConfig
	Email      EmailConfig
	Cron       CronConfig
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
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	AdminToken   string `envconfig:"STOREFRONT_ADMIN_TOKEN" default:""`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LockConfig bounds product lock leases and acquisition waits. The lease must
// outlive the reservation transaction or two holders can overlap.
type LockConfig struct {
	LeaseDuration time.Duration `envconfig:"STOREFRONT_LOCK_LEASE_DURATION" default:"10s"`
	WaitTimeout   time.Duration `envconfig:"STOREFRONT_LOCK_WAIT_TIMEOUT" default:"5s"`
	PollInterval  time.Duration `envconfig:"STOREFRONT_LOCK_POLL_INTERVAL" default:"50ms"`
}

type TaskConfig struct {
	Workers     int           `envconfig:"STOREFRONT_TASK_WORKERS" default:"4"`
	MaxRetries  int           `envconfig:"STOREFRONT_TASK_MAX_RETRIES" default:"3"`
	BackoffBase time.Duration `envconfig:"STOREFRONT_TASK_BACKOFF_BASE" default:"1s"`
	QueueKey    string        `envconfig:"STOREFRONT_TASK_QUEUE_KEY" default:"tasks"`
	PopTimeout  time.Duration `envconfig:"STOREFRONT_TASK_POP_TIMEOUT" default:"5s"`
}

type DeadLetterConfig struct {
	AlertThreshold int           `envconfig:"STOREFRONT_DEADLETTER_ALERT_THRESHOLD" default:"5"`
	AlertWindow    time.Duration `envconfig:"STOREFRONT_DEADLETTER_ALERT_WINDOW" default:"1h"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"STOREFRONT_CATALOG_CACHE_TTL" default:"3m"`
}

type EmailConfig struct {
	DefaultFrom string `envconfig:"STOREFRONT_EMAIL_FROM" default:"orders@storefront.local"`
}

// CronConfig drives the scheduled worker. Processed webhook events are
// archived after WebhookArchiveAfter and removed WebhookDeleteAfter past
// their archival.
type CronConfig struct {
	Interval            time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"10m"`
	LockTTL             time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"9m"`
	WebhookArchiveAfter time.Duration `envconfig:"STOREFRONT_WEBHOOK_ARCHIVE_AFTER" default:"168h"`
	WebhookDeleteAfter  time.Duration `envconfig:"STOREFRONT_WEBHOOK_DELETE_AFTER" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"STOREFRONT_DB_HOST": db.LegacyHost,
		"STOREFRONT_DB_USER": db.LegacyUser,
		"STOREFRONT_DB_NAME": db.LegacyName,
	}
	for _, env := range []string{"STOREFRONT_DB_HOST", "STOREFRONT_DB_USER", "STOREFRONT_DB_NAME"} {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either STOREFRONT_DB_DSN or %s are required", strings.Join(missing, ", "))
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
