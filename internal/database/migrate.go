package database

import (
	"context"
	"embed"
	"fmt"
	"io"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// setupGoose points goose at the embedded migrations for the open dialect
// and returns the directory to run.
func (d *DB) setupGoose() (string, error) {
	if d == nil || d.DB == nil {
		return "", fmt.Errorf("database not opened")
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(d.Dialect()); err != nil {
		return "", fmt.Errorf("failed to set dialect: %w", err)
	}

	return path.Join("migrations", d.Dialect()), nil
}

// Migrate runs all pending migrations.
func (d *DB) Migrate(ctx context.Context) error {
	dir, err := d.setupGoose()
	if err != nil {
		return err
	}

	if err := goose.UpContext(ctx, d.DB.DB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, d.DB.DB)
	if err == nil {
		d.logger.Debug("database migrated", "version", version)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (d *DB) MigrateDown(ctx context.Context) error {
	dir, err := d.setupGoose()
	if err != nil {
		return err
	}

	if err := goose.DownContext(ctx, d.DB.DB, dir); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// MigrationStatus writes the applied/pending state of every migration to w.
func (d *DB) MigrationStatus(ctx context.Context, w io.Writer) error {
	dir, err := d.setupGoose()
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, d.DB.DB)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	all, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("failed to collect migrations: %w", err)
	}

	for _, m := range all {
		state := "pending"
		if m.Version <= current {
			state = "applied"
		}
		if _, err := fmt.Fprintf(w, "%-8s %s\n", state, path.Base(m.Source)); err != nil {
			return err
		}
	}
	return nil
}

// MigrationVersion returns the current migration version.
func (d *DB) MigrationVersion(ctx context.Context) (int64, error) {
	if _, err := d.setupGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, d.DB.DB)
}
