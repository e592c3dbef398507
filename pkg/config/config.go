package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SHOWTIX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "SHOWTIX_APP_ENV"
	EnvDBDSN  = "SHOWTIX_DB_DSN"
	EnvDBHost = "SHOWTIX_DB_HOST"
	EnvDBUser = "SHOWTIX_DB_USER"
	EnvDBName = "SHOWTIX_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	WeChat WeChatConfig
	Order  OrderConfig
	Outbox OutboxConfig
	Cron   CronConfig
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
	Env          string `envconfig:"SHOWTIX_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOWTIX_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"SHOWTIX_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"SHOWTIX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOWTIX_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"SHOWTIX_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOWTIX_DB_DSN"`
	Driver string `envconfig:"SHOWTIX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOWTIX_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOWTIX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOWTIX_DB_USER"`
	LegacyPassword string `envconfig:"SHOWTIX_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOWTIX_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOWTIX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOWTIX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOWTIX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOWTIX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOWTIX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOWTIX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOWTIX_REDIS_ADDR"`
	Password     string        `envconfig:"SHOWTIX_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOWTIX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOWTIX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOWTIX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOWTIX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOWTIX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOWTIX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOWTIX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOWTIX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOWTIX_JWT_EXPIRATION_MINUTES" default:"120"`
}

// WeChatConfig carries the mini-program payment credentials.
type WeChatConfig struct {
	AppID           string        `envconfig:"SHOWTIX_WECHAT_APP_ID"`
	MchID           string        `envconfig:"SHOWTIX_WECHAT_MCH_ID"`
	MchKey          string        `envconfig:"SHOWTIX_WECHAT_MCH_KEY"`
	UnifiedOrderURL string        `envconfig:"SHOWTIX_WECHAT_UNIFIED_ORDER_URL" default:"https://api.mch.weixin.qq.com/pay/unifiedorder"`
	Timeout         time.Duration `envconfig:"SHOWTIX_WECHAT_TIMEOUT" default:"10s"`
	NotifyTTL       time.Duration `envconfig:"SHOWTIX_WECHAT_NOTIFY_IDEMPOTENCY_TTL" default:"72h"`
}

// Configured reports whether all provider credentials are present.
func (w WeChatConfig) Configured() bool {
	return w.AppID != "" && w.MchID != "" && w.MchKey != ""
}

// OrderConfig carries the lifecycle deadlines for the order engine.
type OrderConfig struct {
	CancellationWindow time.Duration `envconfig:"SHOWTIX_ORDER_CANCELLATION_WINDOW" default:"30m"`
	RefundCutoff       time.Duration `envconfig:"SHOWTIX_ORDER_REFUND_CUTOFF" default:"24h"`
}

type OutboxConfig struct {
	Channel     string `envconfig:"SHOWTIX_OUTBOX_CHANNEL" default:"showtix.order-events"`
	BatchSize   int    `envconfig:"SHOWTIX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	MaxAttempts int    `envconfig:"SHOWTIX_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	TickInterval time.Duration `envconfig:"SHOWTIX_CRON_TICK_INTERVAL" default:"1m"`
	LockTTL      time.Duration `envconfig:"SHOWTIX_CRON_LOCK_TTL" default:"5m"`
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
