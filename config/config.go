package config

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Database type constants
const (
	PostgresDbType = "postgres"
	SqliteDbType   = "sqlite"
)

// Log level constants
const (
	LogLevelInfo    = "info"
	LogLevelDebug   = "debug"
	LogLevelError   = "error"
	LogLevelWarning = "warning"
)

// Log type constants
const (
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

type Config struct {
	Env            string   `mapstructure:"env" validate:"required,oneof=development production test"`
	Port           string   `mapstructure:"port" validate:"required,numeric"`
	AppURL         string   `mapstructure:"app_url" validate:"required,url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TrustedProxies lists the proxy IPs/CIDRs whose X-Forwarded-For is
	// believed. Empty means the client IP is the socket peer.
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,ip|cidr"`

	Database   DatabaseSettings   `mapstructure:"database"`
	Logger     LoggerSettings     `mapstructure:"log"`
	Tokens     TokenSettings      `mapstructure:"tokens"`
	Clerk      ClerkSettings      `mapstructure:"clerk"`
	Stripe     StripeSettings     `mapstructure:"stripe"`
	Email      EmailSettings      `mapstructure:"email"`
	Daily      DailySettings      `mapstructure:"daily"`
	R2         R2Settings         `mapstructure:"r2"`
	Notion     NotionSettings     `mapstructure:"notion"`
	RateLimit  RateLimitSettings  `mapstructure:"rate_limit"`
	Hypertrain HypertrainSettings `mapstructure:"hypertrain"`
}

type DatabaseSettings struct {
	Type string `mapstructure:"type" validate:"required,oneof=postgres sqlite"`
	DSN  string `mapstructure:"dsn" validate:"required"`
}

// LoggerSettings holds configuration settings for logging, including log level, type and file path
type LoggerSettings struct {
	LogLevel   string `mapstructure:"level" validate:"required,oneof=info debug error warning"`
	LogType    string `mapstructure:"type" validate:"required,oneof=console file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type TokenSettings struct {
	Secret string `mapstructure:"secret" validate:"required,min=32"`
}

type ClerkSettings struct {
	JWTKey            string   `mapstructure:"jwt_key"`
	SecretKey         string   `mapstructure:"secret_key"`
	WebhookSecret     string   `mapstructure:"webhook_secret"`
	APIURL            string   `mapstructure:"api_url" validate:"omitempty,url"`
	AuthorizedParties []string `mapstructure:"authorized_parties"`
}

type StripeSettings struct {
	SecretKey         string `mapstructure:"secret_key"`
	WebhookSecret     string `mapstructure:"webhook_secret"`
	PokesPriceID      string `mapstructure:"pokes_price_id"`
	BoostsPriceID     string `mapstructure:"boosts_price_id"`
	HypertrainPriceID string `mapstructure:"hypertrain_price_id"`
}

// EmailSettings points at Resend's SMTP relay by default.
type EmailSettings struct {
	Host   string `mapstructure:"host" validate:"required"`
	Port   int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	User   string `mapstructure:"user"`
	Pass   string `mapstructure:"pass"`
	Sender string `mapstructure:"sender" validate:"required"`
}

type DailySettings struct {
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url" validate:"required,url"`
}

type R2Settings struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	PublicURL       string `mapstructure:"public_url"`
}

type NotionSettings struct {
	Token      string        `mapstructure:"token"`
	DatabaseID string        `mapstructure:"database_id"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type RateLimitSettings struct {
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

type HypertrainSettings struct {
	RotationPeriod time.Duration `mapstructure:"rotation_period" validate:"required"`
}

var defaults = map[string]interface{}{
	"env":             EnvDevelopment,
	"port":            "8080",
	"app_url":         "http://localhost:3000",
	"allowed_origins": []string{"http://localhost:3000"},
	"trusted_proxies": []string{},

	"database.type": PostgresDbType,
	"database.dsn":  "",

	"log.level":       LogLevelInfo,
	"log.type":        LogTypeConsole,
	"log.file_path":   "",
	"log.max_size":    10,
	"log.max_backups": 3,
	"log.max_age":     28,

	"tokens.secret": "",

	"clerk.jwt_key":            "",
	"clerk.secret_key":         "",
	"clerk.webhook_secret":     "",
	"clerk.api_url":            "",
	"clerk.authorized_parties": []string{},

	"stripe.secret_key":          "",
	"stripe.webhook_secret":      "",
	"stripe.pokes_price_id":      "",
	"stripe.boosts_price_id":     "",
	"stripe.hypertrain_price_id": "",

	"email.host":   "smtp.resend.com",
	"email.port":   465,
	"email.user":   "resend",
	"email.pass":   "",
	"email.sender": "Im-Vestor <no-reply@im-vestor.com>",

	"daily.api_key": "",
	"daily.api_url": "https://api.daily.co/v1",

	"r2.account_id":        "",
	"r2.access_key_id":     "",
	"r2.secret_access_key": "",
	"r2.bucket":            "",
	"r2.public_url":        "",

	"notion.token":       "",
	"notion.database_id": "",
	"notion.cache_ttl":   10 * time.Minute,

	"rate_limit.rps":   2.0,
	"rate_limit.burst": 10,

	"hypertrain.rotation_period": time.Minute,
}

// Load reads .env (when present) and the environment into a Config.
// Nested keys map to upper-cased env vars joined by underscores, so
// database.dsn is read from DATABASE_DSN.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// It's okay if the .env file isn't found; environment variables may be set elsewhere
		log.Println("No .env file found or error loading .env file:", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct constraints, then the vendor credentials a
// production deployment cannot run without.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed for Config: %w", err)
	}

	if c.Logger.LogType == LogTypeFile {
		if c.Logger.FilePath == "" {
			return fmt.Errorf("file path is required for file logger")
		}
		if c.Logger.MaxSize < 1 || c.Logger.MaxSize > 100 {
			return fmt.Errorf("max size must be between 1 and 100 MB")
		}
	}

	if c.Env != EnvProduction {
		return nil
	}
	required := map[string]string{
		"CLERK_JWT_KEY":         c.Clerk.JWTKey,
		"CLERK_SECRET_KEY":      c.Clerk.SecretKey,
		"CLERK_WEBHOOK_SECRET":  c.Clerk.WebhookSecret,
		"STRIPE_SECRET_KEY":     c.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": c.Stripe.WebhookSecret,
		"EMAIL_PASS":            c.Email.Pass,
		"DAILY_API_KEY":         c.Daily.APIKey,
		"R2_BUCKET":             c.R2.Bucket,
		"NOTION_TOKEN":          c.Notion.Token,
	}
	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing production settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
