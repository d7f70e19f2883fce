package repository

import (
	"context"
	"errors"

	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrStorageUnavailable is returned when the store cannot be opened or has been
// closed. Callers treat it as fatal for the session.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ProductRepository is the catalog half of the store. Lookups that find nothing
// return a nil product and a nil error.
type ProductRepository interface {
	ListInStockProducts(ctx context.Context) ([]domain.Product, error)
	ListInStockProductsByCategory(ctx context.Context, category string) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	UpsertProduct(ctx context.Context, p domain.Product) (int64, error)
	UpsertProducts(ctx context.Context, products []domain.Product) error
	Categories(ctx context.Context) ([]string, error)
	ProductCount(ctx context.Context) (int, error)
}

// CartRepository is the cart half of the store.
type CartRepository interface {
	ListCartItems(ctx context.Context) ([]domain.CartItem, error)
	GetCartItemByProductID(ctx context.Context, productID int64) (*domain.CartItem, error)
	// TotalCartValue is SUM(price * quantity); it is not Valid when the cart is empty.
	TotalCartValue(ctx context.Context) (decimal.NullDecimal, error)
	UpsertCartItem(ctx context.Context, item domain.CartItem) (int64, error)
	// UpdateCartItemQuantity changes only the quantity of row id. It reports
	// false, and writes nothing, when the row no longer exists.
	UpdateCartItemQuantity(ctx context.Context, id int64, quantity int) (bool, error)
	DeleteCartItem(ctx context.Context, item domain.CartItem) error
	ClearCart(ctx context.Context) error
	// TakeCart returns every cart row and deletes them in one transaction.
	TakeCart(ctx context.Context) ([]domain.CartItem, error)
}

type RepoInterface interface {
	ProductRepository
	CartRepository
	RunMigrations() error
	Close() error
}
