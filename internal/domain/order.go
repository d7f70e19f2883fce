package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderConfirmation is the totals snapshot shown after an order is placed.
// It is taken together with the cart clear and is never persisted.
type OrderConfirmation struct {
	ID          uuid.UUID       `json:"id"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	PlacedAt    time.Time       `json:"placed_at"`
}

func NewOrderConfirmation(items []CartItem, placedAt time.Time) OrderConfirmation {
	cart := NewCart(items)
	return OrderConfirmation{
		ID:          uuid.New(),
		Items:       cart.Items,
		TotalAmount: cart.Total,
		ItemCount:   cart.ItemCount(),
		PlacedAt:    placedAt,
	}
}
