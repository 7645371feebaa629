package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tienda-labs/tienda/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog",
		Long: `Load categories, products, demo accounts and reviews into the database.

Rows that already exist are skipped, so running seed twice is harmless.
Pending migrations are applied first.`,
		Example: `  # Load the built-in catalog
  tienda seed

  # Load a catalog of your own
  tienda seed --file ./catalog.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed catalog YAML file (default: built-in catalog)")
	return cmd
}

func runSeed(cmd *cobra.Command, file string) error {
	var (
		catalog *seed.Catalog
		err     error
	)
	if file == "" {
		catalog, err = seed.Default()
	} else {
		var data []byte
		data, err = os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		catalog, err = seed.Parse(data)
	}
	if err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := seed.Run(cmd.Context(), cc.Store, catalog, cc.Logger)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(w, "Seed complete")
	_, _ = fmt.Fprintf(w, "  categories: %d\n", res.Categories)
	_, _ = fmt.Fprintf(w, "  products:   %d\n", res.Products)
	_, _ = fmt.Fprintf(w, "  users:      %d\n", res.Users)
	_, _ = fmt.Fprintf(w, "  reviews:    %d\n", res.Reviews)
	return nil
}
