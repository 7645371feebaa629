// Package database provides the pooled SQL connection used by the storefront,
// with transaction helpers and embedded schema migrations.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// Register the pgx driver as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	// Register the pure-Go SQLite driver as "sqlite".
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	// sqlx only knows mattn's "sqlite3" name; modernc registers "sqlite".
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config describes how to open the database pool.
type Config struct {
	Driver string
	// DSN is a file path (or ":memory:") for sqlite and a full connection
	// string for postgres. When empty for postgres, one is built from the
	// discrete fields below.
	DSN string

	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Logger *slog.Logger
}

// DB is a pooled connection with helpers for transactions and migrations.
type DB struct {
	*sqlx.DB
	driver string
	logger *slog.Logger
}

// Open opens the pool and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = buildSQLiteDSN(cfg.DSN)
	case DriverPostgres, "postgres":
		driver = DriverPostgres
		dsn = cfg.DSN
		if dsn == "" {
			dsn = buildPostgresDSN(cfg)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logger.Debug("opening database", slog.String("driver", driver))

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite && isMemoryDSN(cfg.DSN) {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: driver, logger: logger}, nil
}

// New wraps an existing sqlx handle. Used by tests that inject sqlmock.
func New(db *sqlx.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{DB: db, driver: db.DriverName(), logger: logger}
}

// Dialect returns the goose dialect name for the open driver.
func (d *DB) Dialect() string {
	if d.driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database not opened")
	}
	if err := d.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the pool.
func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// InTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including on panic.
func (d *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}

func buildSQLiteDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if cfg.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	if cfg.Name != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", cfg.Name))
	}
	return strings.Join(parts, " ")
}
