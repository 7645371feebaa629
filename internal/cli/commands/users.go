package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tienda-labs/tienda/internal/store"
)

const dateLayout = "2006-01-02 15:04"

// NewUsersCommand creates the users command group.
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and manage customer accounts",
	}
	cmd.AddCommand(
		newUsersListCommand(),
		newSetAdminCommand("promote", "Grant administrator rights", true),
		newSetAdminCommand("revoke", "Revoke administrator rights", false),
		newUsersStatsCommand(),
	)
	return cmd
}

func newUsersListCommand() *cobra.Command {
	var (
		limit  int
		admins bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest accounts",
		Example: `  tienda users list --limit 50
  tienda users list --admins`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			var users []store.User
			if admins {
				users, err = cc.Store.Users.ListAdmins(cmd.Context())
			} else {
				users, err = cc.Store.Users.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			renderUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of accounts to show")
	cmd.Flags().BoolVar(&admins, "admins", false, "Only list administrators")
	return cmd
}

func renderUsers(w io.Writer, users []store.User) {
	if len(users) == 0 {
		_, _ = fmt.Fprintln(w, "(no users)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Email", "Admin", "Created", "Last login"})
	for _, u := range users {
		lastLogin := "never"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Format(dateLayout)
		}
		admin := ""
		if u.IsAdmin {
			admin = "yes"
		}
		t.AppendRow(table.Row{u.ID, u.FullName(), u.Email, admin, u.CreatedAt.Format(dateLayout), lastLogin})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d users)\n", len(users))
}

func newSetAdminCommand(use, short string, admin bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			u, err := cc.Store.Users.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no active user with email %q", args[0])
			}
			if err := cc.Store.Users.SetAdmin(cmd.Context(), u.ID, admin); err != nil {
				return err
			}

			cc.Logger.Info("admin rights changed", "user_id", u.ID, "admin", admin)
			verb := "is now an administrator"
			if !admin {
				verb = "is no longer an administrator"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", u.Email, verb)
			return nil
		},
	}
}

func newUsersStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := cc.Store.Users.Statistics(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Metric", "Value"})
			t.AppendRows([]table.Row{
				{"Total accounts", st.Total},
				{"Active", st.Active},
				{"Administrators", st.Admins},
				{"New in last 30 days", st.NewLast30d},
			})
			t.Render()
			return nil
		},
	}
}
