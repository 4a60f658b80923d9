package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Reports       ReportsConfig
	Transparency  TransparencyConfig
	Exports       ExportsConfig
	Mail          MailConfig
	PasswordReset PasswordResetConfig
	Sentry        SentryConfig
	Security      SecurityConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReportsConfig throttles public submissions.
type ReportsConfig struct {
	IPLimit       int
	IPWindow      time.Duration
	EmailLimit    int
	EmailWindow   time.Duration
	AdminPageSize int
}

// TransparencyConfig controls caching of the public statistics page.
type TransparencyConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportsConfig controls archived CSV/PDF exports.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Retention       time.Duration
	CleanupSchedule string
}

// MailConfig selects the outgoing mail transport.
type MailConfig struct {
	Driver          string
	Host            string
	Port            int
	Username        string
	Password        string
	From            string
	AdminRecipients []string
	RatePerSecond   float64
	Workers         int
	MaxRetries      int
	RetryDelay      time.Duration
}

// PasswordResetConfig signs password reset links.
type PasswordResetConfig struct {
	Secret string
	TTL    time.Duration
}

// SentryConfig enables error reporting outside development.
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

type SecurityConfig struct {
	ContentSecurityPolicy string
}

// Enabled reports whether Sentry should be initialised for the environment.
func (s SentryConfig) Enabled(env string) bool {
	return s.DSN != "" && (env == EnvProduction || env == EnvStaging)
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Reports = ReportsConfig{
		IPLimit:       v.GetInt("REPORTS_IP_LIMIT"),
		IPWindow:      parseDuration(v.GetString("REPORTS_IP_WINDOW"), time.Hour),
		EmailLimit:    v.GetInt("REPORTS_EMAIL_LIMIT"),
		EmailWindow:   parseDuration(v.GetString("REPORTS_EMAIL_WINDOW"), 24*time.Hour),
		AdminPageSize: v.GetInt("REPORTS_ADMIN_PAGE_SIZE"),
	}

	cfg.Transparency = TransparencyConfig{
		CacheEnabled: v.GetBool("TRANSPARENCY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("TRANSPARENCY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORT_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORT_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORT_SIGNED_URL_TTL"), 24*time.Hour),
		Retention:       parseDuration(v.GetString("EXPORT_RETENTION"), 7*24*time.Hour),
		CleanupSchedule: v.GetString("EXPORT_CLEANUP_SCHEDULE"),
	}

	cfg.Mail = MailConfig{
		Driver:          strings.ToLower(v.GetString("MAIL_DRIVER")),
		Host:            v.GetString("SMTP_HOST"),
		Port:            v.GetInt("SMTP_PORT"),
		Username:        v.GetString("SMTP_USERNAME"),
		Password:        v.GetString("SMTP_PASSWORD"),
		From:            v.GetString("MAIL_FROM"),
		AdminRecipients: splitAndTrim(v.GetString("ADMIN_NOTIFICATION_EMAILS")),
		RatePerSecond:   v.GetFloat64("MAIL_RATE_PER_SECOND"),
		Workers:         v.GetInt("MAIL_WORKERS"),
		MaxRetries:      v.GetInt("MAIL_MAX_RETRIES"),
		RetryDelay:      parseDuration(v.GetString("MAIL_RETRY_DELAY"), 30*time.Second),
	}

	cfg.PasswordReset = PasswordResetConfig{
		Secret: v.GetString("PASSWORD_RESET_SECRET"),
		TTL:    parseDuration(v.GetString("PASSWORD_RESET_TTL"), 15*time.Minute),
	}

	cfg.Sentry = SentryConfig{
		DSN:              v.GetString("SENTRY_DSN"),
		TracesSampleRate: v.GetFloat64("SENTRY_TRACES_SAMPLE_RATE"),
	}

	cfg.Security = SecurityConfig{
		ContentSecurityPolicy: v.GetString("SECURITY_CSP"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "https://redtape.la")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "redtape")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "redtape-api")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REPORTS_IP_LIMIT", 5)
	v.SetDefault("REPORTS_IP_WINDOW", "1h")
	v.SetDefault("REPORTS_EMAIL_LIMIT", 3)
	v.SetDefault("REPORTS_EMAIL_WINDOW", "24h")
	v.SetDefault("REPORTS_ADMIN_PAGE_SIZE", 25)

	v.SetDefault("TRANSPARENCY_CACHE_ENABLED", true)
	v.SetDefault("TRANSPARENCY_CACHE_TTL", "10m")

	v.SetDefault("EXPORT_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORT_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORT_RETENTION", "168h")
	v.SetDefault("EXPORT_CLEANUP_SCHEDULE", "@hourly")

	v.SetDefault("MAIL_DRIVER", "log")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "Red Tape Reports <noreply@redtape.la>")
	v.SetDefault("ADMIN_NOTIFICATION_EMAILS", "")
	v.SetDefault("MAIL_RATE_PER_SECOND", 2)
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "30s")

	v.SetDefault("PASSWORD_RESET_SECRET", "dev_password_reset_secret")
	v.SetDefault("PASSWORD_RESET_TTL", "15m")

	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("SENTRY_TRACES_SAMPLE_RATE", 0.1)

	v.SetDefault("SECURITY_CSP", "default-src 'self' https:; font-src 'self' https: data:; img-src 'self' https: data:; object-src 'none'; script-src 'self' https:; style-src 'self' https: 'unsafe-inline'; connect-src 'self' https:")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
