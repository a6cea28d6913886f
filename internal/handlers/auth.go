package handlers

import (
	"net/http"

	"wallet/internal/auth"
	"wallet/internal/middleware"
	"wallet/internal/models"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	account, err := h.service.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, err, "signup failed")
		return
	}
	h.respondToken(w, http.StatusCreated, account)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	account, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, err, "login failed")
		return
	}
	h.respondToken(w, http.StatusOK, account)
}

func (h *Handler) respondToken(w http.ResponseWriter, status int, account models.Account) {
	token, err := auth.GenerateToken(h.cfg.JWTSecret, account.Username, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, status, map[string]string{
		"token":    token,
		"username": account.Username,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	summary, err := h.service.Wallet(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"username":    summary.Account.Username,
		"balance_set": summary.Account.BalanceSet,
		"avatar":      summary.Account.Avatar,
	})
}
