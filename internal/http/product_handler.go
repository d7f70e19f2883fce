package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/qahwa-storefront/internal/catalog"
	"github.com/fjod/qahwa-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	responder
	catalog *catalog.Service
	timeout time.Duration
}

func NewProductHandler(c *catalog.Service, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		responder: responder{log: log},
		catalog:   c,
		timeout:   timeout,
	}
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	InStock     bool            `json:"in_stock"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

type CatalogViewResponse struct {
	Category string            `json:"category"`
	Search   string            `json:"search"`
	Products []ProductResponse `json:"products"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    catalog.ResolveImage(p.ImageURL),
		Category:    p.Category,
		InStock:     p.InStock,
	}
}

func toProductResponses(products []domain.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	return out
}

// List returns in-stock products, narrowed by ?category= and ?q=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	criteria := catalog.Criteria{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("q"),
	}

	view, err := h.catalog.Apply(ctx, criteria)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, &ProductsResponse{Products: toProductResponses(view.Products)})
}

// Events streams the filtered product list: the current view first, then the
// result of every filter applied through List.
func (h *ProductHandler) Events(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe, err := h.catalog.Watch(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	defer unsubscribe()

	streamEvents(h.responder, w, r, "products", ch, func(view catalog.View) any {
		return CatalogViewResponse{
			Category: view.Criteria.Category,
			Search:   view.Criteria.Search,
			Products: toProductResponses(view.Products),
		}
	})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	p, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if p == nil {
		h.respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, toProductResponse(*p))
}

// Categories lists the category chips, "all" first.
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, &CategoriesResponse{
		Categories: append([]string{catalog.AllCategories}, categories...),
	})
}
