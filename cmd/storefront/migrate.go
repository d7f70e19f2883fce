package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and the catalog seed",
		Long: `Applies every pending migration. The catalog seed is itself a migration,
so running this repeatedly never duplicates the seed products.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.newLogger(os.Stderr)

			a, err := newApp(cmd.Context(), opts.cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.repo.ProductCount(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date, %d products in catalog\n", opts.cfg.DBPath, count)
			return nil
		},
	}
}
