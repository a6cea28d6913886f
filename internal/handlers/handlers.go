package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"wallet/internal/ledger"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/services"
	"wallet/internal/validator"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{ledger.ErrNotANumber, http.StatusBadRequest, "not_a_number"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrMissingReason, http.StatusBadRequest, "missing_reason"},
	{ledger.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{ledger.ErrBalanceOutOfRange, http.StatusBadRequest, "balance_out_of_range"},
	{ledger.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{ledger.ErrEmptyLedger, http.StatusConflict, "empty_ledger"},
	{ledger.ErrAlreadyInitialized, http.StatusConflict, "balance_already_set"},
	{ledger.ErrMissingGoalName, http.StatusBadRequest, "missing_goal_name"},
	{ledger.ErrInvalidJobProfile, http.StatusBadRequest, "invalid_job_profile"},
	{ledger.ErrZeroIncome, http.StatusBadRequest, "zero_income"},
	{ledger.ErrPaycheckNotReady, http.StatusConflict, "paycheck_not_ready"},
	{services.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{services.ErrUsernameTaken, http.StatusConflict, "username_taken"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrInvalidSource, http.StatusBadRequest, "invalid_source"},
	{services.ErrInvalidKind, http.StatusBadRequest, "invalid_type"},
	{services.ErrAvatarTooLarge, http.StatusRequestEntityTooLarge, "avatar_too_large"},
	{validator.ErrInvalidUsername, http.StatusBadRequest, "invalid_username"},
	{validator.ErrInvalidPassword, http.StatusBadRequest, "invalid_password"},
}

// respondServiceError maps domain errors to a status and code; anything
// unknown is logged and reported as fallback.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code)
			return
		}
	}
	log.Printf("%s: %v", fallback, err)
	respondError(w, http.StatusInternalServerError, fallback)
}

func transactionJSON(tx models.Transaction) map[string]any {
	return map[string]any{
		"id":         tx.ID,
		"type":       tx.Kind,
		"amount":     money.FormatMinor(tx.Amount),
		"effect":     money.FormatMinor(tx.Effect()),
		"source":     tx.Source,
		"category":   tx.Category,
		"reason":     tx.Reason,
		"created_at": tx.CreatedAt.Format(time.RFC3339),
	}
}

func transactionsJSON(list []models.Transaction) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, tx := range list {
		out = append(out, transactionJSON(tx))
	}
	return out
}

func changeJSON(change services.Change) map[string]any {
	return map[string]any{
		"transaction": transactionJSON(change.Transaction),
		"balance":     money.FormatMinor(change.Balance),
	}
}

func goalJSON(goal *models.SavingsGoal) any {
	if goal == nil {
		return nil
	}
	return map[string]any{
		"name":   goal.Name,
		"amount": money.FormatMinor(goal.Amount),
	}
}

func paycheckJSON(summary services.PaycheckSummary) map[string]any {
	var last any
	if summary.LastPaycheckAt != nil {
		last = summary.LastPaycheckAt.Format(time.RFC3339)
	}
	return map[string]any{
		"state":             summary.Status.State,
		"can_collect":       summary.Status.CanCollect(),
		"weekly_income":     money.FormatMinor(summary.Status.WeeklyIncome),
		"monthly_estimate":  money.FormatMinor(summary.MonthlyEstimate),
		"remaining_seconds": int64(summary.Status.Remaining / time.Second),
		"remaining":         ledger.FormatCountdown(summary.Status.Remaining),
		"last_paycheck_at":  last,
		"job": map[string]any{
			"hourly_rate":   summary.Job.HourlyRate.String(),
			"weekday_hours": summary.Job.WeekdayHours.String(),
			"weekend":       summary.Job.Weekend,
			"weekend_hours": summary.Job.WeekendHours.String(),
		},
	}
}

// jsonOrString embeds stored JSON as-is and falls back to the raw text.
func jsonOrString(data string) any {
	if json.Valid([]byte(data)) {
		return json.RawMessage(data)
	}
	return data
}
