package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	API    APIConfig
	Sync   SyncConfig
	Orders OrdersConfig
	Ops    OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKFINDERZ_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"PACKFINDERZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKFINDERZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Driver string `envconfig:"PACKFINDERZ_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"PACKFINDERZ_DB_DSN" default:"file:packfinderz-catalog.db?_foreign_keys=on"`

	AutoMigrate     bool          `envconfig:"PACKFINDERZ_DB_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"PACKFINDERZ_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PACKFINDERZ_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local mirror runs on the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

func (db DBConfig) validate() error {
	switch strings.ToLower(db.Driver) {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvDBDriver, DBDriverSQLite, DBDriverPostgres)
	}
	if strings.TrimSpace(db.DSN) == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	return nil
}

// RedisConfig is optional; an empty URL and address keeps the scheduler ledger in memory.
type RedisConfig struct {
	URL          string        `envconfig:"PACKFINDERZ_REDIS_URL"`
	Address      string        `envconfig:"PACKFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"PACKFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type APIConfig struct {
	BaseURL      string        `envconfig:"PACKFINDERZ_API_BASE_URL" required:"true"`
	Timeout      time.Duration `envconfig:"PACKFINDERZ_API_TIMEOUT" default:"30s"`
	ProbeTimeout time.Duration `envconfig:"PACKFINDERZ_API_PROBE_TIMEOUT" default:"5s"`
}

func (a APIConfig) validate() error {
	parsed, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvAPIBaseURL)
	}
	return nil
}

type SyncConfig struct {
	Interval       time.Duration `envconfig:"PACKFINDERZ_SYNC_INTERVAL" default:"6h"`
	Timeout        time.Duration `envconfig:"PACKFINDERZ_SYNC_TIMEOUT" default:"2m"`
	RetryBase      time.Duration `envconfig:"PACKFINDERZ_SYNC_RETRY_BASE" default:"30s"`
	RetryMax       time.Duration `envconfig:"PACKFINDERZ_SYNC_RETRY_MAX" default:"5h"`
	MaxRetries     uint64        `envconfig:"PACKFINDERZ_SYNC_MAX_RETRIES" default:"0"`
	ConstraintPoll time.Duration `envconfig:"PACKFINDERZ_SYNC_CONSTRAINT_POLL" default:"1m"`
	LockTTL        time.Duration `envconfig:"PACKFINDERZ_SYNC_LOCK_TTL" default:"30m"`
}

type OrdersConfig struct {
	RemoteSubmission  bool          `envconfig:"PACKFINDERZ_ORDERS_REMOTE_SUBMISSION" default:"false"`
	SubmitBatchSize   int           `envconfig:"PACKFINDERZ_ORDERS_SUBMIT_BATCH_SIZE" default:"25"`
	SubmitInterval    time.Duration `envconfig:"PACKFINDERZ_ORDERS_SUBMIT_INTERVAL" default:"15m"`
	SubmitMaxAttempts int           `envconfig:"PACKFINDERZ_ORDERS_SUBMIT_MAX_ATTEMPTS" default:"3"`
}

type OpsConfig struct {
	Addr string `envconfig:"PACKFINDERZ_OPS_ADDR" default:":9090"`
}
