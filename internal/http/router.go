package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/qahwa-storefront/internal/auth"
	"github.com/fjod/qahwa-storefront/internal/catalog"
	"github.com/fjod/qahwa-storefront/internal/checkout"
	"github.com/fjod/qahwa-storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Catalog  *catalog.Service
	Carts    *service.CartService
	Checkout *checkout.Service
	Auth     *auth.Service
	Log      *slog.Logger

	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout, cfg.Log)
	cartHandler := NewCartHandler(cfg.Carts, cfg.Catalog, cfg.RequestTimeout, cfg.Log)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.RequestTimeout, cfg.Log)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Log)
	health := responder{log: cfg.Log}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if cfg.Carts.Unavailable() {
			health.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "storage_unavailable"})
			return
		}
		health.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// long-lived streams, no request timeout
		r.Get("/products/events", productHandler.Events)
		r.Get("/cart/events", cartHandler.Events)
		r.Get("/checkout/events", checkoutHandler.Events)
		r.Get("/auth/events", authHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))

			r.Get("/products", productHandler.List)
			r.Get("/products/{product_id}", productHandler.Get)
			r.Get("/categories", productHandler.Categories)

			r.Get("/cart", cartHandler.GetCart)
			r.Delete("/cart", cartHandler.ClearCart)
			r.Post("/cart/items", cartHandler.AddItem)
			r.Put("/cart/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/cart/items/{product_id}", cartHandler.RemoveItem)

			r.Get("/checkout", checkoutHandler.Get)
			r.Post("/checkout", checkoutHandler.Begin)
			r.Post("/checkout/confirm", checkoutHandler.Confirm)
			r.Post("/checkout/cancel", checkoutHandler.Cancel)
			r.Post("/checkout/continue", checkoutHandler.Continue)

			r.Get("/auth/session", authHandler.Session)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/signup", authHandler.Signup)
			r.Post("/auth/logout", authHandler.Logout)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
