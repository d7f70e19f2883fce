package http

import (
	"log/slog"
	"net/http"

	"github.com/fjod/qahwa-storefront/internal/auth"
)

type AuthHandler struct {
	responder
	auth *auth.Service
}

func NewAuthHandler(a *auth.Service, log *slog.Logger) *AuthHandler {
	return &AuthHandler{responder: responder{log: log}, auth: a}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequestDTO struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) Session(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.auth.State())
}

// Login blocks for the simulated network delay. A rejected login answers 401
// with the error state as body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.respondAuthState(w, h.auth.Login(r.Context(), req.Email, req.Password))
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := auth.ValidateSignup(req.Name, req.Email, req.Password, req.ConfirmPassword); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondAuthState(w, h.auth.Signup(r.Context(), req.Name, req.Email, req.Password))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.auth.Logout(r.Context()))
}

func (h *AuthHandler) respondAuthState(w http.ResponseWriter, st auth.State) {
	status := http.StatusOK
	if st.Phase == auth.PhaseError {
		status = http.StatusUnauthorized
	}
	h.respondJSON(w, status, st)
}

// Events streams the auth state, so a client sees Loading while a login is
// still in flight.
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe := h.auth.Watch()
	defer unsubscribe()

	streamEvents(h.responder, w, r, "auth", ch, identity[auth.State])
}
