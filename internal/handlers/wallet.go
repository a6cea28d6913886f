package handlers

import (
	"net/http"
	"strconv"

	"wallet/internal/middleware"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/services"

	"github.com/go-chi/chi/v5"
)

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return username, ok
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Wallet(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to load wallet")
		return
	}
	account := summary.Account
	respondJSON(w, http.StatusOK, map[string]any{
		"username":     account.Username,
		"balance":      money.FormatMinor(account.Balance),
		"balance_set":  account.BalanceSet,
		"goal":         goalJSON(account.Goal),
		"avatar":       account.Avatar,
		"paycheck":     paycheckJSON(summary.Paycheck),
		"transactions": transactionsJSON(account.Transactions),
	})
}

type balanceRequest struct {
	Amount rawAmount `json:"amount"`
}

func (h *Handler) InitializeBalance(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req balanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	change, err := h.service.InitializeBalance(r.Context(), username, string(req.Amount))
	if err != nil {
		respondServiceError(w, err, "unable to set balance")
		return
	}
	respondJSON(w, http.StatusCreated, changeJSON(change))
}

type transactionRequest struct {
	Type     string    `json:"type"`
	Amount   rawAmount `json:"amount"`
	Reason   string    `json:"reason"`
	Source   string    `json:"source"`
	Category string    `json:"category"`
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	change, err := h.service.RecordTransaction(r.Context(), services.TransactionRequest{
		Username: username,
		Kind:     models.Kind(req.Type),
		Amount:   string(req.Amount),
		Reason:   req.Reason,
		Source:   req.Source,
		Category: req.Category,
	})
	if err != nil {
		respondServiceError(w, err, "unable to record transaction")
		return
	}
	respondJSON(w, http.StatusCreated, changeJSON(change))
}

// ListTransactions returns the log newest first, optionally filtered by type
// and paged with limit/offset.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Wallet(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to load transactions")
		return
	}
	kind := models.Kind(r.URL.Query().Get("type"))
	filtered := make([]models.Transaction, 0, len(summary.Account.Transactions))
	for _, tx := range summary.Account.Transactions {
		if kind == "" || tx.Kind == kind {
			filtered = append(filtered, tx)
		}
	}
	limit, offset := parsePagination(r, 100, 1000)
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":        len(filtered),
		"transactions": transactionsJSON(filtered[offset:end]),
	})
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	change, err := h.service.DeleteTransaction(r.Context(), username, id)
	if err != nil {
		respondServiceError(w, err, "unable to delete transaction")
		return
	}
	respondJSON(w, http.StatusOK, changeJSON(change))
}

func (h *Handler) UndoLast(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	change, err := h.service.UndoLast(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to undo")
		return
	}
	respondJSON(w, http.StatusOK, changeJSON(change))
}

type goalRequest struct {
	Name   string    `json:"name"`
	Amount rawAmount `json:"amount"`
}

func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	goal, err := h.service.SetGoal(r.Context(), username, req.Name, string(req.Amount))
	if err != nil {
		respondServiceError(w, err, "unable to set goal")
		return
	}
	respondJSON(w, http.StatusOK, goalJSON(&goal))
}

type jobRequest struct {
	HourlyRate   rawAmount `json:"hourly_rate"`
	WeekdayHours rawAmount `json:"weekday_hours"`
	Weekend      bool      `json:"weekend"`
	WeekendHours rawAmount `json:"weekend_hours"`
}

func (h *Handler) SetJob(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req jobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	summary, err := h.service.SetJobProfile(r.Context(), username, services.JobRequest{
		HourlyRate:   string(req.HourlyRate),
		WeekdayHours: string(req.WeekdayHours),
		Weekend:      req.Weekend,
		WeekendHours: string(req.WeekendHours),
	})
	if err != nil {
		respondServiceError(w, err, "unable to save job")
		return
	}
	respondJSON(w, http.StatusOK, paycheckJSON(summary))
}

func (h *Handler) GetPaycheck(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	summary, err := h.service.PaycheckStatus(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to load paycheck")
		return
	}
	respondJSON(w, http.StatusOK, paycheckJSON(summary))
}

func (h *Handler) CollectPaycheck(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	change, err := h.service.CollectPaycheck(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to collect paycheck")
		return
	}
	respondJSON(w, http.StatusCreated, changeJSON(change))
}

func (h *Handler) Spending(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	totals, err := h.service.Spending(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to load spending")
		return
	}
	response := make([]map[string]any, 0, len(totals))
	for _, item := range totals {
		response = append(response, map[string]any{
			"category":   item.Category,
			"total":      money.FormatMinor(item.Total),
			"count":      item.Count,
			"percentage": item.Percentage,
		})
	}
	respondJSON(w, http.StatusOK, response)
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

func (h *Handler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit := int64(maxBodyBytes)
	if extra := int64(h.cfg.MaxAvatarBytes) + 4096; extra > limit {
		limit = extra
	}
	var req avatarRequest
	if err := decodeJSONLimit(w, r, &req, limit); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.service.SetAvatar(r.Context(), username, req.Avatar); err != nil {
		respondServiceError(w, err, "unable to save avatar")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	result, err := h.service.SelfCheck(r.Context(), username)
	if err != nil {
		respondServiceError(w, err, "unable to self_check")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"stored_balance": money.FormatMinor(result.StoredBalance),
		"ledger_sum":     money.FormatMinor(result.LedgerSum),
		"difference":     money.FormatMinor(result.Difference),
		"balanced":       result.Balanced(),
	})
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset := parsePagination(r, 50, 500)
	entries, err := h.service.Activity(r.Context(), username, limit, offset)
	if err != nil {
		respondServiceError(w, err, "unable to load activity")
		return
	}
	response := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		response = append(response, map[string]any{
			"id":          entry.ID,
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
			"data":        jsonOrString(entry.Data),
			"created_at":  entry.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, response)
}
