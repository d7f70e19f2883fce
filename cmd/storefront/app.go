package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/qahwa-storefront/internal/auth"
	"github.com/fjod/qahwa-storefront/internal/cache"
	"github.com/fjod/qahwa-storefront/internal/catalog"
	"github.com/fjod/qahwa-storefront/internal/checkout"
	"github.com/fjod/qahwa-storefront/internal/config"
	"github.com/fjod/qahwa-storefront/internal/repository"
	"github.com/fjod/qahwa-storefront/internal/service"
	"github.com/redis/go-redis/v9"
)

// app holds the wired components for one process.
type app struct {
	repo     *repository.Repository
	redis    *redis.Client
	catalog  *catalog.Service
	carts    *service.CartService
	checkout *checkout.Service
	auth     *auth.Service
	log      *slog.Logger
}

// newApp opens the store, applies migrations and wires the services.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	repo, err := repository.NewRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := repo.RunMigrations(); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{repo: repo, log: log}

	var cartCache cache.CartCache = cache.NopCache{}
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, cart reads go to the store until it recovers",
				slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		}
		cancel()

		cartCache = cache.NewBreakerCache(cache.NewRedisCache(a.redis), cache.DefaultBreakerSettings(), log)
	}

	a.catalog = catalog.NewService(repo, log.With("component", "catalog"))
	a.carts = service.NewCartService(repo, cartCache, log.With("component", "cart"))
	a.checkout = checkout.NewService(a.carts, log.With("component", "checkout"))
	a.auth = auth.NewService(cfg.AuthDelay, log.With("component", "auth"))

	return a, nil
}

// closeStreams ends every projection subscription, which lets open event
// streams return.
func (a *app) closeStreams() {
	a.catalog.Close()
	a.carts.Close()
	a.checkout.Close()
	a.auth.Close()
}

func (a *app) Close() error {
	a.closeStreams()

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.repo.Close())
	return errors.Join(errs...)
}
