package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tienda-labs/tienda/internal/cli/config"
	"github.com/tienda-labs/tienda/internal/database"
	"github.com/tienda-labs/tienda/internal/store"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	DB     *database.DB
	Store  *store.Store
}

// NewCommandContext opens the database described by the loaded config.
// With migrate set, pending migrations run before it returns.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, migrate bool) (*CommandContext, func(), error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := config.GetLogger(cmd.Context())

	if err := ensureSQLiteDir(cfg); err != nil {
		return nil, nil, err
	}

	db, err := database.Open(cmd.Context(), cfg.DatabaseConfig(logger))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = db.Close()
	}

	if migrate {
		if err := db.Migrate(cmd.Context()); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		DB:     db,
		Store:  store.New(db, logger),
	}, cleanup, nil
}

// getConfig returns the configuration loaded by the root command, loading
// it from the working directory when a command runs on its own.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// ensureSQLiteDir creates the directory holding a SQLite file.
func ensureSQLiteDir(cfg *config.Config) error {
	dsn := cfg.Database.DSN
	if cfg.Database.Driver != "sqlite" || dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
