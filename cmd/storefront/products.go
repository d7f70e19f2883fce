package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fjod/qahwa-storefront/internal/catalog"
	"github.com/spf13/cobra"
)

func newProductsCmd(opts *options) *cobra.Command {
	var criteria catalog.Criteria

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List in-stock products",
		Example: `  storefront products
  storefront products --category Thé
  storefront products --search chocolat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.newLogger(os.Stderr))
			if err != nil {
				return err
			}
			defer a.Close()

			products, err := a.catalog.ListProducts(cmd.Context(), criteria)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
			for _, p := range products {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&criteria.Category, "category", "c", "", "Only this category")
	cmd.Flags().StringVarP(&criteria.Search, "search", "s", "", "Case-insensitive text in name or description")

	return cmd
}
