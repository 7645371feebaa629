package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command and its up/down/status
// subcommands. Without a subcommand it migrates up.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded schema migrations to the configured database.

Running "tienda migrate" on its own is the same as "tienda migrate up".`,
		Example: `  # Apply all pending migrations
  tienda migrate

  # Roll back the latest migration
  tienda migrate down

  # Show which migrations are applied
  tienda migrate status`,
		Args: cobra.NoArgs,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cc, cleanup, err := NewCommandContext(cmd, false)
				if err != nil {
					return err
				}
				defer cleanup()

				if err := cc.DB.MigrateDown(cmd.Context()); err != nil {
					return err
				}
				return printVersion(cmd, cc)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cc, cleanup, err := NewCommandContext(cmd, false)
				if err != nil {
					return err
				}
				defer cleanup()

				return cc.DB.MigrationStatus(cmd.Context(), cmd.OutOrStdout())
			},
		},
	)
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cc.DB.Migrate(cmd.Context()); err != nil {
		return err
	}
	return printVersion(cmd, cc)
}

func printVersion(cmd *cobra.Command, cc *CommandContext) error {
	v, err := cc.DB.MigrationVersion(cmd.Context())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Database at version %d\n", v)
	return nil
}
