package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/qahwa-storefront/internal/checkout"
)

type CheckoutHandler struct {
	responder
	checkout *checkout.Service
	timeout  time.Duration
}

func NewCheckoutHandler(c *checkout.Service, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		responder: responder{log: log},
		checkout:  c,
		timeout:   timeout,
	}
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.checkout.State())
}

// Begin opens the confirm dialog and returns the review totals.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.checkout.Begin(ctx); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.checkout.State())
}

func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	confirmation, err := h.checkout.Confirm(ctx)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, confirmation)
}

func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Cancel(r.Context()); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.checkout.State())
}

func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Continue(r.Context()); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.checkout.State())
}

// Events streams the checkout state, current state first.
func (h *CheckoutHandler) Events(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe := h.checkout.Watch()
	defer unsubscribe()

	streamEvents(h.responder, w, r, "checkout", ch, identity[checkout.State])
}
