// Package service holds the cart state manager: the only writer of cart rows.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/qahwa-storefront/internal/cache"
	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/fjod/qahwa-storefront/internal/projection"
	"github.com/fjod/qahwa-storefront/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", ErrValidation)
)

// cartKey identifies the single local cart in the cache.
const cartKey = "local"

type CartService struct {
	mu    sync.Mutex
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group
	hub   *projection.Hub[domain.Cart]
	log   *slog.Logger

	// set once the store reports it is unavailable; never cleared
	unavailable atomic.Bool
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, log *slog.Logger) *CartService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CartService{
		repo:  repo,
		cache: c,
		hub:   projection.NewHub[domain.Cart](),
		log:   log,
	}
}

// GetCart returns the current lines and their total. The total is zero for an
// empty cart.
func (s *CartService) GetCart(ctx context.Context) (domain.Cart, error) {
	v, err, _ := s.sfg.Do(cartKey, func() (any, error) {
		cart, err := s.cache.Get(ctx, cartKey)
		if err == nil {
			return *cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", slog.Any("error", err))
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		loaded, err := s.load(ctx)
		if err != nil {
			return domain.Cart{}, err
		}
		if err := s.cache.Set(ctx, cartKey, &loaded); err != nil {
			s.log.WarnContext(ctx, "cache set error", slog.Any("error", err))
		}
		return loaded, nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return v.(domain.Cart), nil
}

// ItemByProductID returns the line holding productID, or nil.
func (s *CartService) ItemByProductID(ctx context.Context, productID int64) (*domain.CartItem, error) {
	item, err := s.repo.GetCartItemByProductID(ctx, productID)
	if err != nil {
		return nil, s.fail(ctx, "get cart item", err)
	}
	return item, nil
}

// AddToCart adds quantity units of product. If the product already has a line
// its quantity is increased, otherwise a new line is created from the
// product's current name, price and image.
func (s *CartService) AddToCart(ctx context.Context, product domain.Product, quantity int) (domain.CartItem, error) {
	if quantity <= 0 {
		return domain.CartItem{}, ErrInvalidQuantity
	}
	if err := s.writable(); err != nil {
		return domain.CartItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetCartItemByProductID(ctx, product.ID)
	if err != nil {
		return domain.CartItem{}, s.fail(ctx, "get cart item", err)
	}

	var item domain.CartItem
	if existing != nil {
		item = *existing
		item.Quantity += quantity
		if _, err := s.repo.UpdateCartItemQuantity(ctx, item.ID, item.Quantity); err != nil {
			return domain.CartItem{}, s.fail(ctx, "update cart item quantity", err)
		}
	} else {
		item = domain.CartItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    quantity,
			ImageURL:    product.ImageURL,
		}
		id, err := s.repo.UpsertCartItem(ctx, item)
		if err != nil {
			return domain.CartItem{}, s.fail(ctx, "insert cart item", err)
		}
		item.ID = id
	}

	s.log.InfoContext(ctx, "item added to cart",
		slog.Int64("product_id", product.ID),
		slog.Int("added", quantity),
		slog.Int("quantity", item.Quantity))
	s.changed(ctx)
	return item, nil
}

// SetQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line. Only the quantity is written, and a line that no
// longer exists is left absent.
func (s *CartService) SetQuantity(ctx context.Context, item domain.CartItem, quantity int) error {
	if quantity > 0 && item.ID <= 0 {
		return fmt.Errorf("%w: cart item has no id", ErrValidation)
	}
	if err := s.writable(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.setQuantity(ctx, item, quantity)
	return err
}

// SetQuantityByProductID is SetQuantity for the line holding productID. It
// reports false when the product is not in the cart.
func (s *CartService) SetQuantityByProductID(ctx context.Context, productID int64, quantity int) (bool, error) {
	if err := s.writable(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.repo.GetCartItemByProductID(ctx, productID)
	if err != nil {
		return false, s.fail(ctx, "get cart item", err)
	}
	if item == nil {
		return false, nil
	}
	return s.setQuantity(ctx, *item, quantity)
}

// Remove deletes the line. Removing a line that no longer exists is not an error.
func (s *CartService) Remove(ctx context.Context, item domain.CartItem) error {
	if err := s.writable(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(ctx, item)
}

// RemoveByProductID deletes the line holding productID, if any.
func (s *CartService) RemoveByProductID(ctx context.Context, productID int64) error {
	if err := s.writable(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.repo.GetCartItemByProductID(ctx, productID)
	if err != nil {
		return s.fail(ctx, "get cart item", err)
	}
	if item == nil {
		return nil
	}
	return s.remove(ctx, *item)
}

// setQuantity runs under s.mu.
func (s *CartService) setQuantity(ctx context.Context, item domain.CartItem, quantity int) (bool, error) {
	if quantity <= 0 {
		return true, s.remove(ctx, item)
	}

	updated, err := s.repo.UpdateCartItemQuantity(ctx, item.ID, quantity)
	if err != nil {
		return false, s.fail(ctx, "update cart item quantity", err)
	}
	if !updated {
		s.log.DebugContext(ctx, "cart item already removed", slog.Int64("id", item.ID))
		return false, nil
	}

	s.log.InfoContext(ctx, "cart item quantity set",
		slog.Int64("product_id", item.ProductID),
		slog.Int("quantity", quantity))
	s.changed(ctx)
	return true, nil
}

// remove runs under s.mu.
func (s *CartService) remove(ctx context.Context, item domain.CartItem) error {
	if err := s.repo.DeleteCartItem(ctx, item); err != nil {
		return s.fail(ctx, "delete cart item", err)
	}

	s.log.InfoContext(ctx, "cart item removed", slog.Int64("product_id", item.ProductID))
	s.changed(ctx)
	return nil
}

func (s *CartService) Clear(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ClearCart(ctx); err != nil {
		return s.fail(ctx, "clear cart", err)
	}

	s.log.InfoContext(ctx, "cart cleared")
	s.changed(ctx)
	return nil
}

// TakeSnapshot returns every line and empties the cart in one step.
func (s *CartService) TakeSnapshot(ctx context.Context) ([]domain.CartItem, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.TakeCart(ctx)
	if err != nil {
		return nil, s.fail(ctx, "take cart", err)
	}

	s.changed(ctx)
	return items, nil
}

// Total sums price * quantity over items; zero for none.
func (s *CartService) Total(items []domain.CartItem) decimal.Decimal {
	return domain.Total(items)
}

// Refresh reloads the cart from the store and publishes it to watchers.
func (s *CartService) Refresh(ctx context.Context) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	s.hub.Publish(cart)
	return cart, nil
}

// Watch subscribes to the cart view. The channel starts out holding the
// current cart and receives a new value after every change.
func (s *CartService) Watch(ctx context.Context) (<-chan domain.Cart, func(), error) {
	if _, ok := s.hub.Latest(); !ok {
		if _, err := s.Refresh(ctx); err != nil {
			return nil, nil, err
		}
	}
	ch, cancel := s.hub.Subscribe()
	return ch, cancel, nil
}

// Unavailable reports whether the store has failed for this session.
func (s *CartService) Unavailable() bool {
	return s.unavailable.Load()
}

func (s *CartService) Close() {
	s.hub.Close()
}

// load reads the cart under s.mu.
func (s *CartService) load(ctx context.Context) (domain.Cart, error) {
	items, err := s.repo.ListCartItems(ctx)
	if err != nil {
		return domain.Cart{}, s.fail(ctx, "list cart items", err)
	}
	total, err := s.total(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	cart := domain.NewCart(items)
	cart.Total = total
	return cart, nil
}

// total is the only place the store's "no rows" total becomes zero.
func (s *CartService) total(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.repo.TotalCartValue(ctx)
	if err != nil {
		return decimal.Zero, s.fail(ctx, "total cart value", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// changed runs under s.mu after a successful write.
func (s *CartService) changed(ctx context.Context) {
	s.invalidateCache()

	cart, err := s.load(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "reload cart after change", slog.Any("error", err))
		return
	}
	s.hub.Publish(cart)
}

func (s *CartService) invalidateCache() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cartKey); err != nil {
		s.log.Warn("cache invalidate error", slog.Any("error", err))
	}
}

func (s *CartService) writable() error {
	if s.unavailable.Load() {
		return fmt.Errorf("cart is read-only: %w", repository.ErrStorageUnavailable)
	}
	return nil
}

// fail wraps a store error and latches the service when the store is gone.
func (s *CartService) fail(ctx context.Context, op string, err error) error {
	if errors.Is(err, repository.ErrStorageUnavailable) && s.unavailable.CompareAndSwap(false, true) {
		s.log.ErrorContext(ctx, "storage unavailable, cart is now read-only",
			slog.String("op", op), slog.Any("error", err))
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
