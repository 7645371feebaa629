package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/tienda/internal/database"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("addr", DefaultAddr, "")
	fs.Bool("dev", false, "")
	fs.String("templates-dir", "", "")
	fs.Bool("watch", false, "")
	fs.String("db-driver", DefaultDriver, "")
	fs.String("dsn", "", "")
	fs.String("log-level", DefaultLogLevel, "")
	return fs
}

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.DSN)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.Session.MaxAge)
	assert.Empty(t, cfg.Session.Secret)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, "tienda:login", cfg.Redis.Prefix)
	assert.Equal(t, 5, cfg.RateLimit.LoginMaxAttempts)
	assert.Equal(t, "local", cfg.Media.Driver)
	assert.Equal(t, DefaultURLPrefix, cfg.Media.URLPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Shop.AbandonedAfter)
	assert.Equal(t, 30*24*time.Hour, cfg.Shop.CartExpiry)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, GetConfigFileUsed())

	assert.ErrorContains(t, cfg.ValidateServe(), "session.secret is required")
}

func TestLoadConfig_FileDiscovery(t *testing.T) {
	for _, name := range []string{"tienda.yaml", "tienda.yml"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeConfig(t, dir, name, "server:\n  addr: \":8080\"\n")

			cfg, err := LoadConfig("", nil)
			require.NoError(t, err)
			assert.Equal(t, ":8080", cfg.Server.Addr)
			assert.Equal(t, name, GetConfigFileUsed())
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	path := writeConfig(t, dir, "shop.yaml", `
server:
  addr: ":8080"
  shutdown_timeout: 10s
  cors_origins: ["https://a.example.com"]
database:
  driver: postgres
  host: db.internal
  name: tienda
session:
  secret: `+testSecret+`
rate_limit:
  requests: 20
log_level: debug
`)

	t.Setenv("TIENDA_SERVER__ADDR", ":8181")
	t.Setenv("TIENDA_RATE_LIMIT__WINDOW", "30s")
	t.Setenv("TIENDA_LOG_FORMAT", "json")
	t.Setenv("TIENDA_REDIS__ADDR", "localhost:6379")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--addr", ":9000", "--dev"}))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, path, GetConfigFileUsed())

	// flag > env > file
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.Dev)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Empty(t, cfg.Database.DSN, "no sqlite default for postgres")

	assert.Equal(t, testSecret, cfg.Session.Secret)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	// Unchanged flags keep the lower layers.
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadConfig_EnvList(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TIENDA_SERVER__CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoadConfig_Dev(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	templates := filepath.Join(dir, "templates")

	tests := []struct {
		name       string
		args       []string
		wantSecret string
		wantWatch  bool
	}{
		{
			name:       "dev fills the session secret",
			args:       []string{"--dev"},
			wantSecret: DevSessionSecret,
		},
		{
			name:       "watch needs dev",
			args:       []string{"--watch", "--templates-dir", templates},
			wantSecret: "",
		},
		{
			name:       "watch needs a templates dir",
			args:       []string{"--dev", "--watch"},
			wantSecret: DevSessionSecret,
		},
		{
			name:       "dev watch",
			args:       []string{"--dev", "--watch", "--templates-dir", templates},
			wantSecret: DevSessionSecret,
			wantWatch:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testFlags()
			require.NoError(t, fs.Parse(tt.args))

			cfg, err := LoadConfig("", fs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSecret, cfg.Session.Secret)
			assert.Equal(t, tt.wantWatch, cfg.Server.Watch)
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		errSubstr string
	}{
		{
			name:      "bad yaml",
			yaml:      "server: [",
			errSubstr: "error reading config file",
		},
		{
			name:      "unknown log level",
			yaml:      "log_level: loud\n",
			errSubstr: `log_level must be one of [debug info warn error], got "loud"`,
		},
		{
			name:      "unknown driver",
			yaml:      "database:\n  driver: mysql\n",
			errSubstr: "database.driver must be one of",
		},
		{
			name:      "short secret",
			yaml:      "session:\n  secret: short\n",
			errSubstr: "session.secret must be at least 32 characters",
		},
		{
			name:      "zero window",
			yaml:      "rate_limit:\n  window: 0s\n",
			errSubstr: "rate_limit.window",
		},
		{
			name:      "relative url prefix",
			yaml:      "media:\n  url_prefix: uploads\n",
			errSubstr: "media.url_prefix",
		},
		{
			name:      "s3 without bucket",
			yaml:      "media:\n  driver: s3\n  s3:\n    region: us-east-1\n",
			errSubstr: "media.s3.bucket and media.s3.region are required",
		},
		{
			name:      "bad s3 endpoint",
			yaml:      "media:\n  driver: s3\n  s3:\n    bucket: b\n    region: r\n    endpoint: not a url\n",
			errSubstr: "media.s3.endpoint",
		},
		{
			name:      "postgres without host",
			yaml:      "database:\n  driver: postgres\n",
			errSubstr: "database.dsn or database.host is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			path := writeConfig(t, dir, "tienda.yaml", tt.yaml)

			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_DatabaseConfig(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Driver:          "postgres",
		Host:            "db",
		Port:            5433,
		User:            "shop",
		Password:        "pw",
		Name:            "tienda",
		SSLMode:         "require",
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Minute,
	}}

	got := cfg.DatabaseConfig(nil)
	assert.Equal(t, database.DriverPostgres, got.Driver)
	assert.Equal(t, "db", got.Host)
	assert.Equal(t, 5433, got.Port)
	assert.Equal(t, "require", got.SSLMode)
	assert.Equal(t, 4, got.MaxOpenConns)
	assert.Equal(t, time.Minute, got.ConnMaxLifetime)

	cfg.Database.Driver = "sqlite"
	assert.Equal(t, database.DriverSQLite, cfg.DatabaseConfig(nil).Driver)
}

func TestKeyPath(t *testing.T) {
	tests := []struct {
		ns   string
		want string
	}{
		{"Config.LogLevel", "log_level"},
		{"Config.Session.Secret", "session.secret"},
		{"Config.RateLimit.LoginMaxAttempts", "rate_limit.login_max_attempts"},
		{"Config.Database.DSN", "database.dsn"},
		{"Config.Media.S3.AccessKeyID", "media.s3.access_key_id"},
		{"Config.Server.CORSOrigins", "server.cors_origins"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyPath(tt.ns), tt.ns)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	NewLogger(&buf, "debug", "text").Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "text")
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	GetLogger(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")
}
