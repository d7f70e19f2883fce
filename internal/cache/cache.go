// Package cache keeps a read copy of the cart view in front of the store.
package cache

import (
	"context"
	"errors"

	"github.com/fjod/qahwa-storefront/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, key string) (*domain.Cart, error)
	Set(ctx context.Context, key string, cart *domain.Cart) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache always misses. It is used when no redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Cart, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, *domain.Cart) error {
	return nil
}

func (NopCache) Delete(context.Context, string) error {
	return nil
}
