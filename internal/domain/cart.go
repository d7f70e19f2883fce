package domain

import "github.com/shopspring/decimal"

// CartItem is one line of the cart. ProductName, Price and ImageURL are copied
// from the product when the line is created and are not refreshed afterwards.
type CartItem struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"image_url"`
}

// Subtotal returns price * quantity for the line.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the read view of the cart: its lines plus their total.
type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// ItemCount is the number of distinct lines, not the sum of quantities.
func (c Cart) ItemCount() int {
	return len(c.Items)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total sums price * quantity over items. An empty or nil slice totals zero.
func Total(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// NewCart builds the cart view for items, computing the total.
func NewCart(items []CartItem) Cart {
	if items == nil {
		items = []CartItem{}
	}
	return Cart{Items: items, Total: Total(items)}
}
