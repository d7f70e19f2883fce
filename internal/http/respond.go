package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/qahwa-storefront/internal/auth"
	"github.com/fjod/qahwa-storefront/internal/checkout"
	"github.com/fjod/qahwa-storefront/internal/repository"
	"github.com/fjod/qahwa-storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// responder writes JSON responses and logs failures to the router's logger.
type responder struct {
	log *slog.Logger
}

func (rs responder) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.log.Error("failed to encode response", slog.Any("error", err))
	}
}

func (rs responder) respondError(w http.ResponseWriter, status int, code, message string) {
	rs.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondServiceError maps errors from the core packages to HTTP responses.
func (rs responder) respondServiceError(w http.ResponseWriter, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, auth.ErrValidation):
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus = http.StatusConflict
		code = "empty_cart"
	case errors.Is(err, checkout.ErrIllegalTransition):
		httpStatus = http.StatusConflict
		code = "illegal_transition"
	case errors.Is(err, repository.ErrStorageUnavailable):
		httpStatus = http.StatusServiceUnavailable
		code = "storage_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		rs.log.Error("unhandled service error", slog.Any("error", err))
		rs.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	rs.respondError(w, httpStatus, code, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// productIDParam reads the {product_id} path parameter.
func productIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
