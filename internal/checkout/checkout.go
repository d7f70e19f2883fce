// Package checkout drives the confirm-order dialog: review the cart, confirm,
// and show the placed order.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/fjod/qahwa-storefront/internal/projection"
	"github.com/shopspring/decimal"
)

// Cart is the part of the cart service checkout depends on.
type Cart interface {
	GetCart(ctx context.Context) (domain.Cart, error)
	TakeSnapshot(ctx context.Context) ([]domain.CartItem, error)
}

// Review is what the confirm dialog shows before the order is placed.
type Review struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// State is the published checkout view. Review is set while confirming,
// Confirmation once the order is placed.
type State struct {
	Status       Status                    `json:"status"`
	Review       *Review                   `json:"review,omitempty"`
	Confirmation *domain.OrderConfirmation `json:"confirmation,omitempty"`
}

type Service struct {
	mu    sync.Mutex
	cart  Cart
	state State
	hub   *projection.Hub[State]
	log   *slog.Logger
	now   func() time.Time
}

func NewService(cart Cart, log *slog.Logger) *Service {
	s := &Service{
		cart:  cart,
		state: State{Status: StatusCart},
		hub:   projection.NewHub[State](),
		log:   log,
		now:   time.Now,
	}
	s.hub.Publish(s.state)
	return s
}

// Begin opens the confirm dialog for the current cart.
func (s *Service) Begin(ctx context.Context) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == StatusConfirming {
		return Review{}, s.illegal(StatusConfirming)
	}

	cart, err := s.cart.GetCart(ctx)
	if err != nil {
		return Review{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.IsEmpty() {
		return Review{}, ErrEmptyCart
	}

	review := Review{TotalAmount: cart.Total, ItemCount: cart.ItemCount()}
	s.set(ctx, State{Status: StatusConfirming, Review: &review})
	return review, nil
}

// Cancel closes the confirm dialog without touching the cart.
func (s *Service) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != StatusConfirming {
		return s.illegal(StatusCart)
	}
	s.set(ctx, State{Status: StatusCart})
	return nil
}

// Confirm places the order: the cart is emptied and its totals are returned
// in the same step.
func (s *Service) Confirm(ctx context.Context) (domain.OrderConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != StatusConfirming {
		return domain.OrderConfirmation{}, s.illegal(StatusOrderPlaced)
	}

	items, err := s.cart.TakeSnapshot(ctx)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("failed to take cart snapshot: %w", err)
	}
	if len(items) == 0 {
		// emptied elsewhere while the dialog was open
		s.set(ctx, State{Status: StatusCart})
		return domain.OrderConfirmation{}, ErrEmptyCart
	}

	confirmation := domain.NewOrderConfirmation(items, s.now())
	s.set(ctx, State{Status: StatusOrderPlaced, Confirmation: &confirmation})
	s.log.InfoContext(ctx, "order placed",
		slog.String("order_id", confirmation.ID.String()),
		slog.String("total", confirmation.TotalAmount.String()),
		slog.Int("item_count", confirmation.ItemCount))
	return confirmation, nil
}

// Continue leaves the placed order screen and returns to shopping.
func (s *Service) Continue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != StatusOrderPlaced {
		return s.illegal(StatusCart)
	}
	s.set(ctx, State{Status: StatusCart})
	return nil
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) Watch() (<-chan State, func()) {
	return s.hub.Subscribe()
}

func (s *Service) Close() {
	s.hub.Close()
}

func (s *Service) set(ctx context.Context, next State) {
	s.log.DebugContext(ctx, "checkout status changed",
		slog.String("from", s.state.Status.String()),
		slog.String("to", next.Status.String()))
	s.state = next
	s.hub.Publish(next)
}

func (s *Service) illegal(to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state.Status, to)
}
