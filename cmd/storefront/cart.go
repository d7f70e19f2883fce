package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart lines and total",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.newLogger(os.Stderr))
			if err != nil {
				return err
			}
			defer a.Close()

			cart, err := a.carts.GetCart(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cart.IsEmpty() {
				fmt.Fprintln(out, "cart is empty")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tQTY\tPRICE\tSUBTOTAL")
			for _, item := range cart.Items {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", item.ProductName, item.Quantity, item.Price.StringFixed(2), item.Subtotal().StringFixed(2))
			}
			fmt.Fprintf(tw, "TOTAL\t\t\t%s\n", cart.Total.StringFixed(2))
			return tw.Flush()
		},
	}
}
