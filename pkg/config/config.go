package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
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
	Razorpay      RazorpayConfig
	WhatsApp      WhatsAppConfig
	Outbox        OutboxConfig
	QR            QRConfig
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
	Env          string   `envconfig:"KIRANA_APP_ENV" required:"true"`
	Port         string   `envconfig:"KIRANA_APP_PORT" required:"true"`
	BaseURL      string   `envconfig:"KIRANA_APP_BASE_URL" default:"http://localhost:8080"`
	CORSOrigins  []string `envconfig:"KIRANA_APP_CORS_ORIGINS" default:"http://localhost:3000"`
	LogLevel     string   `envconfig:"KIRANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"KIRANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KIRANA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KIRANA_DB_DSN"`
	Driver string `envconfig:"KIRANA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"KIRANA_DB_HOST"`
	Port     int    `envconfig:"KIRANA_DB_PORT" default:"5432"`
	User     string `envconfig:"KIRANA_DB_USER"`
	Password string `envconfig:"KIRANA_DB_PASSWORD"`
	Name     string `envconfig:"KIRANA_DB_NAME"`
	SSLMode  string `envconfig:"KIRANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIRANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIRANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIRANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIRANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// ensureDSN builds the postgres DSN from the discrete fields when one was not
// provided directly.
func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db config requires KIRANA_DB_DSN or host/user/name")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"KIRANA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIRANA_REDIS_ADDR"`
	Password     string        `envconfig:"KIRANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIRANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIRANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIRANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIRANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIRANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIRANA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KIRANA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KIRANA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KIRANA_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"KIRANA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KIRANA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KIRANA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KIRANA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KIRANA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KIRANA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KIRANA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginPhoneLimit    int           `envconfig:"KIRANA_AUTH_RATE_LIMIT_LOGIN_PHONE_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KIRANA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"KIRANA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterPhoneLimit int           `envconfig:"KIRANA_AUTH_RATE_LIMIT_REGISTER_PHONE_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"KIRANA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KIRANA_FEATURE_AUTO_MIGRATE" default:"false"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"KIRANA_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"KIRANA_RAZORPAY_KEY_SECRET"`
	Enabled   bool   `envconfig:"KIRANA_RAZORPAY_ENABLED" default:"false"`
}

type WhatsAppConfig struct {
	APIBaseURL  string        `envconfig:"KIRANA_WHATSAPP_API_BASE_URL"`
	PhoneID     string        `envconfig:"KIRANA_WHATSAPP_PHONE_ID"`
	AccessToken string        `envconfig:"KIRANA_WHATSAPP_ACCESS_TOKEN"`
	Timeout     time.Duration `envconfig:"KIRANA_WHATSAPP_TIMEOUT" default:"10s"`
	Enabled     bool          `envconfig:"KIRANA_WHATSAPP_ENABLED" default:"false"`
}

type OutboxConfig struct {
	BatchSize     int           `envconfig:"KIRANA_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval  time.Duration `envconfig:"KIRANA_OUTBOX_POLL_INTERVAL" default:"5s"`
	MaxAttempts   int           `envconfig:"KIRANA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays int           `envconfig:"KIRANA_OUTBOX_RETENTION_DAYS" default:"14"`
}

type QRConfig struct {
	Size int `envconfig:"KIRANA_QR_SIZE" default:"512"`
}
