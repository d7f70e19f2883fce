package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	storehttp "github.com/fjod/qahwa-storefront/internal/http"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront JSON API",
		Long: `Opens the database, applies migrations and the catalog seed, then serves
the storefront API under /api/v1.`,
		Example: `  # Start server on the configured port
  storefront serve

  # Use a throwaway in-memory store
  storefront serve --db :memory: --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}

			log := opts.newLogger(os.Stdout)

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error("close failed", slog.Any("error", err))
				}
			}()

			if _, err := a.carts.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load cart: %w", err)
			}

			addr := fmt.Sprintf(":%d", cfg.HTTPPort)
			server := &http.Server{
				Addr: addr,
				Handler: storehttp.NewRouter(storehttp.RouterConfig{
					Catalog:        a.catalog,
					Carts:          a.carts,
					Checkout:       a.checkout,
					Auth:           a.auth,
					Log:            log,
					RequestTimeout: cfg.RequestTimeout,
				}),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info("storefront API listening", slog.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				log.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()

				a.closeStreams()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error("server shutdown failed", slog.Any("error", err))
					return err
				}
				log.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (default $HTTP_PORT or 8080)")

	return cmd
}
