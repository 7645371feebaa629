package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewCartsCommand creates the carts maintenance commands.
func NewCartsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carts",
		Short: "Report and clean up stale carts",
		Long: `Cart maintenance meant to run from cron or a scheduled job.

  abandoned  lists carts with items that nobody touched for a while
  cleanup    deletes empty carts past the expiry age`,
	}
	cmd.AddCommand(newAbandonedCommand(), newCleanupCommand())
	return cmd
}

func newAbandonedCommand() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "abandoned",
		Short: "List carts with items left untouched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			if !cmd.Flags().Changed("older-than") {
				olderThan = cc.Cfg.Shop.AbandonedAfter
			}
			carts, err := cc.Store.Carts.Abandoned(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(carts) == 0 {
				_, _ = fmt.Fprintf(w, "No carts abandoned for more than %s\n", olderThan)
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Cart", "Owner", "Items", "Total", "Last update"})
			for _, c := range carts {
				owner := "anonymous"
				switch {
				case c.UserEmail != nil:
					owner = *c.UserEmail
				case c.SessionID != nil && len(*c.SessionID) >= 8:
					owner = "session " + (*c.SessionID)[:8]
				}
				t.AppendRow(table.Row{c.ID, owner, c.ItemCount, c.TotalValue.String(), c.UpdatedAt.Format(dateLayout)})
			}
			t.Render()
			_, _ = fmt.Fprintf(w, "(%d carts)\n", len(carts))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum idle time (default: shop.abandoned_after)")
	return cmd
}

func newCleanupCommand() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired empty carts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			if !cmd.Flags().Changed("older-than") {
				olderThan = cc.Cfg.Shop.CartExpiry
			}
			n, err := cc.Store.Carts.CleanupExpired(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired carts\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum idle time (default: shop.cart_expiry)")
	return cmd
}
