package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/qahwa-storefront/internal/catalog"
	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/fjod/qahwa-storefront/internal/service"
	"github.com/shopspring/decimal"
)

const maxQuantity = 99

type CartHandler struct {
	responder
	carts   *service.CartService
	catalog *catalog.Service
	timeout time.Duration
}

func NewCartHandler(carts *service.CartService, c *catalog.Service, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		responder: responder{log: log},
		carts:     carts,
		catalog:   c,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ImageURL    string          `json:"image_url"`
}

type CartResponse struct {
	Items     []CartItemResponse `json:"items"`
	Total     decimal.Decimal    `json:"total"`
	ItemCount int                `json:"item_count"`
}

func toCartResponse(cart domain.Cart) CartResponse {
	items := make([]CartItemResponse, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal(),
			ImageURL:    catalog.ResolveImage(item.ImageURL),
		}
	}
	return CartResponse{
		Items:     items,
		Total:     cart.Total,
		ItemCount: cart.ItemCount(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondCart(ctx, w, http.StatusOK)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", fmt.Sprintf("quantity must be between 1 and %d", maxQuantity))
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}

	if _, err := h.carts.AddToCart(ctx, *product, req.Quantity); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondCart(ctx, w, http.StatusCreated)
}

// UpdateQuantity sets the quantity of the line for product_id. Zero removes it.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", fmt.Sprintf("quantity must be between 0 and %d", maxQuantity))
		return
	}

	found, err := h.carts.SetQuantityByProductID(ctx, productID, req.Quantity)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if !found {
		h.respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
		return
	}

	h.respondCart(ctx, w, http.StatusOK)
}

// RemoveItem deletes the line for product_id. A missing line is not an error.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	if err := h.carts.RemoveByProductID(ctx, productID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondCart(ctx, w, http.StatusOK)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.Clear(ctx); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondCart(ctx, w, http.StatusOK)
}

// Events streams the cart as server-sent events: the current cart first, then
// one event after every change.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe, err := h.carts.Watch(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	defer unsubscribe()

	streamEvents(h.responder, w, r, "cart", ch, func(cart domain.Cart) any {
		return toCartResponse(cart)
	})
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, status int) {
	cart, err := h.carts.GetCart(ctx)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, status, toCartResponse(cart))
}
