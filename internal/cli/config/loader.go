package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/tienda-labs/tienda/internal/database"
)

// loggerKey and configKey store the logger and config in the command context.
type (
	loggerKey struct{}
	configKey struct{}
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "TIENDA_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// flagKeys maps command-line flags onto config keys. Flags missing here are
// not configuration (for example --config itself).
var flagKeys = map[string]string{
	"addr":          "server.addr",
	"dev":           "server.dev",
	"templates-dir": "server.templates_dir",
	"watch":         "server.watch",
	"db-driver":     "database.driver",
	"dsn":           "database.dsn",
	"auto-migrate":  "database.auto_migrate",
	"metrics":       "metrics.enabled",
	"log-level":     "log_level",
	"log-format":    "log_format",
}

func defaults() map[string]any {
	return map[string]any{
		"server.addr":             DefaultAddr,
		"server.dev":              false,
		"server.watch":            false,
		"server.trust_proxy":      false,
		"server.shutdown_timeout": 5 * time.Second,

		"database.driver":            DefaultDriver,
		"database.port":              5432,
		"database.sslmode":           "disable",
		"database.max_open_conns":    10,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": 30 * time.Minute,
		"database.auto_migrate":      true,

		"session.secure":  false,
		"session.max_age": DefaultSessionMaxAge,

		"rate_limit.enabled":            true,
		"rate_limit.requests":           100,
		"rate_limit.window":             15 * time.Minute,
		"rate_limit.burst":              100,
		"rate_limit.login_max_attempts": 5,
		"rate_limit.login_lockout":      15 * time.Minute,

		"redis.prefix": "tienda:login",

		"media.driver":     "local",
		"media.dir":        DefaultMediaDir,
		"media.url_prefix": DefaultURLPrefix,

		"metrics.enabled": false,

		"shop.abandoned_after": 7 * 24 * time.Hour,
		"shop.cart_expiry":     30 * 24 * time.Hour,

		"log_level":  DefaultLogLevel,
		"log_format": DefaultLogFormat,
	}
}

// findConfigFile finds the config file to use.
// Priority: explicit path > tienda.yaml > tienda.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"tienda.yaml", "tienda.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey turns TIENDA_SESSION__SECRET into session.secret.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from defaults, file, environment variables
// and flags, then validates it.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerived fills values that depend on other settings.
func (c *Config) applyDerived() {
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = DefaultSQLitePath
	}
	if c.Session.Secret == "" && c.Server.Dev {
		c.Session.Secret = DevSessionSecret
	}
	// Templates on disk are only worth watching in dev.
	if c.Server.TemplatesDir == "" || !c.Server.Dev {
		c.Server.Watch = false
	}
}

// DatabaseConfig converts the database section for database.Open.
func (c *Config) DatabaseConfig(logger *slog.Logger) database.Config {
	driver := database.DriverSQLite
	if c.Database.Driver == "postgres" {
		driver = database.DriverPostgres
	}
	return database.Config{
		Driver:          driver,
		DSN:             c.Database.DSN,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Name:            c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		Logger:          logger,
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config loaded by the root command, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}
