// Package config loads the tienda configuration from defaults, a YAML file,
// TIENDA_ environment variables and command-line flags, in that order of
// precedence.
package config

import "time"

// Config holds all configuration options.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Session   SessionConfig   `koanf:"session"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Redis     RedisConfig     `koanf:"redis"`
	Media     MediaConfig     `koanf:"media"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Shop      ShopConfig      `koanf:"shop"`

	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	Dev  bool   `koanf:"dev"`
	// TemplatesDir serves templates from disk instead of the embedded copy.
	TemplatesDir    string        `koanf:"templates_dir"`
	Watch           bool          `koanf:"watch"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	TrustProxy      bool          `koanf:"trust_proxy"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig describes the database connection.
type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	// DSN is the SQLite file path, or a full PostgreSQL connection string.
	DSN             string        `koanf:"dsn"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=0,lte=65535"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"sslmode"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	Secret string        `koanf:"secret" validate:"omitempty,min=32"`
	Secure bool          `koanf:"secure"`
	MaxAge time.Duration `koanf:"max_age" validate:"gt=0"`
}

// RateLimitConfig limits requests per client and failed logins.
type RateLimitConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Requests         int           `koanf:"requests" validate:"gte=1"`
	Window           time.Duration `koanf:"window" validate:"gt=0"`
	Burst            int           `koanf:"burst" validate:"gte=1"`
	LoginMaxAttempts int           `koanf:"login_max_attempts" validate:"gte=1"`
	LoginLockout     time.Duration `koanf:"login_lockout" validate:"gt=0"`
}

// RedisConfig points at the Redis instance that shares login attempts
// between replicas. An empty Addr keeps attempts in memory.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Prefix   string `koanf:"prefix"`
}

// MediaConfig selects where product images are stored.
type MediaConfig struct {
	Driver    string   `koanf:"driver" validate:"oneof=local s3"`
	Dir       string   `koanf:"dir"`
	URLPrefix string   `koanf:"url_prefix" validate:"startswith=/"`
	S3        S3Config `koanf:"s3"`
}

// S3Config holds the bucket settings for the s3 media driver.
type S3Config struct {
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	KeyPrefix       string `koanf:"key_prefix"`
	PublicURL       string `koanf:"public_url" validate:"omitempty,url"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ShopConfig holds cart maintenance thresholds.
type ShopConfig struct {
	AbandonedAfter time.Duration `koanf:"abandoned_after" validate:"gt=0"`
	CartExpiry     time.Duration `koanf:"cart_expiry" validate:"gt=0"`
}

// Default configuration values.
const (
	DefaultAddr          = ":3000"
	DefaultDriver        = "sqlite"
	DefaultSQLitePath    = "data/tienda.db"
	DefaultMediaDir      = "data/uploads"
	DefaultURLPrefix     = "/uploads"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultSessionMaxAge = 24 * time.Hour

	// DevSessionSecret is used in dev mode when no secret is configured.
	DevSessionSecret = "tienda-dev-session-secret-do-not-use"
)
