package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Reservation  ReservationConfig
	MergeLock    MergeLockConfig
	Cron         CronConfig
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
	Env          string `envconfig:"MOSAICMART_APP_ENV" required:"true"`
	Port         string `envconfig:"MOSAICMART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MOSAICMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MOSAICMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MOSAICMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MOSAICMART_DB_DSN"`
	Driver string `envconfig:"MOSAICMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MOSAICMART_DB_HOST"`
	LegacyPort     int    `envconfig:"MOSAICMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MOSAICMART_DB_USER"`
	LegacyPassword string `envconfig:"MOSAICMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"MOSAICMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"MOSAICMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MOSAICMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MOSAICMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MOSAICMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MOSAICMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MOSAICMART_REDIS_URL"`
	Address      string        `envconfig:"MOSAICMART_REDIS_ADDR"`
	Password     string        `envconfig:"MOSAICMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MOSAICMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MOSAICMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MOSAICMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MOSAICMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MOSAICMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MOSAICMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ReservationConfig bounds the stock-hold lifecycle. The TTL is the
// correctness boundary; the sweep cadence only controls how promptly
// expired holds are reclaimed.
type ReservationConfig struct {
	TTL            time.Duration `envconfig:"MOSAICMART_RESERVATION_TTL" default:"30m"`
	SweepInterval  time.Duration `envconfig:"MOSAICMART_RESERVATION_SWEEP_INTERVAL" default:"5m"`
	SweepBatchSize int           `envconfig:"MOSAICMART_RESERVATION_SWEEP_BATCH_SIZE" default:"100"`
}

// MergeLockConfig controls the cross-process cart-merge lock.
type MergeLockConfig struct {
	Enabled bool          `envconfig:"MOSAICMART_MERGE_LOCK_ENABLED" default:"true"`
	TTL     time.Duration `envconfig:"MOSAICMART_MERGE_LOCK_TTL" default:"30s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MOSAICMART_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"MOSAICMART_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MOSAICMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MOSAICMART_AUTO_MIGRATE" default:"false"`
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
