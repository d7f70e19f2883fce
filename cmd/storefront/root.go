package main

import (
	"io"
	"log/slog"

	"github.com/fjod/qahwa-storefront/internal/config"
	"github.com/fjod/qahwa-storefront/internal/logger"
	"github.com/spf13/cobra"
)

// options are shared by every subcommand.
type options struct {
	cfg      config.Config
	dbPath   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Qahwa d'Origine storefront: catalog, cart and mock checkout",
		Long: `Storefront runs the local data layer of the Qahwa d'Origine coffee shop.

It keeps the catalog and the cart in an embedded SQLite database, and serves
a JSON API for browsing, cart management, checkout and a simulated login.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.cfg = config.Load()
			if cmd.Flags().Changed("db") {
				opts.cfg.DBPath = opts.dbPath
			}
			if cmd.Flags().Changed("log-level") {
				opts.cfg.LogLevel = opts.logLevel
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $DB_PATH or ./qahwa.db)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newProductsCmd(opts),
		newCartCmd(opts),
	)

	return cmd
}

// newLogger builds the JSON logger. Commands that print results pass stderr so
// logs and output don't mix.
func (o *options) newLogger(w io.Writer) *slog.Logger {
	return logger.New(logger.Options{
		Service: "storefront",
		Env:     o.cfg.AppEnv,
		Level:   o.cfg.LogLevel,
		Writer:  w,
	})
}
