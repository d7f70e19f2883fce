package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings controls when the breaker opens and how long it stays open.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// BreakerCache stops calling the wrapped cache after repeated failures. While
// open, reads miss and writes are dropped, so callers fall through to the store.
type BreakerCache struct {
	next CartCache
	cb   *gobreaker.CircuitBreaker[*domain.Cart]
}

func NewBreakerCache(next CartCache, s BreakerSettings, log *slog.Logger) *BreakerCache {
	cb := gobreaker.NewCircuitBreaker[*domain.Cart](gobreaker.Settings{
		Name:        "cart-cache",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &BreakerCache{next: next, cb: cb}
}

func (b *BreakerCache) Get(ctx context.Context, key string) (*domain.Cart, error) {
	cart, err := b.cb.Execute(func() (*domain.Cart, error) {
		return b.next.Get(ctx, key)
	})
	if isOpen(err) {
		return nil, ErrCacheMiss
	}
	return cart, err
}

func (b *BreakerCache) Set(ctx context.Context, key string, cart *domain.Cart) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.next.Set(ctx, key, cart)
	})
	if isOpen(err) {
		return nil
	}
	return err
}

func (b *BreakerCache) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.next.Delete(ctx, key)
	})
	if isOpen(err) {
		return nil
	}
	return err
}

// State exposes the breaker state for health reporting.
func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}

func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
