package store

import (
	"encoding/json"
	"fmt"
	"time"

	"wallet/internal/models"
	"wallet/internal/money"

	"github.com/shopspring/decimal"
)

// accountRecord is the persisted JSON shape of one account. Every field may
// be missing in records written before it existed.
type accountRecord struct {
	Password     string              `json:"password,omitempty"`
	PasswordHash string              `json:"passwordHash,omitempty"`
	Balance      json.Number         `json:"balance"`
	BalanceSet   bool                `json:"balanceSet"`
	Transactions []transactionRecord `json:"transactions"`
	Goal         *goalRecord         `json:"goal"`
	JobSettings  *jobRecord          `json:"jobSettings,omitempty"`
	LastPaycheck *int64              `json:"lastPaycheck,omitempty"`
	Avatar       string              `json:"avatar,omitempty"`
	NextID       int64               `json:"nextId,omitempty"`
}

type transactionRecord struct {
	ID       int64       `json:"id"`
	Reason   string      `json:"reason"`
	Amount   json.Number `json:"amount"`
	Type     string      `json:"type"`
	Source   string      `json:"source"`
	Category string      `json:"category,omitempty"`
	Date     string      `json:"date"`
}

type goalRecord struct {
	Name   string      `json:"name"`
	Amount json.Number `json:"amount"`
}

type jobRecord struct {
	HourlyRate   json.Number `json:"hourlyRate"`
	WeekdayHours json.Number `json:"weekdayHours"`
	Weekend      bool        `json:"weekend"`
	WeekendHours json.Number `json:"weekendHours"`
}

// Ids written by older clients were millisecond timestamps; anything past
// this is treated as one when the date string cannot be parsed.
const legacyIDThreshold = 1_000_000_000_000

// MarshalAccount serializes the full account. A legacy plaintext credential
// is carried only until a hash replaces it.
func MarshalAccount(account models.Account) ([]byte, error) {
	record := accountRecord{
		PasswordHash: account.PasswordHash,
		Balance:      minorNumber(account.Balance),
		BalanceSet:   account.BalanceSet,
		Transactions: make([]transactionRecord, 0, len(account.Transactions)),
		Goal:         &goalRecord{Amount: minorNumber(0)},
		Avatar:       account.Avatar,
		NextID:       account.LastTransactionID,
	}
	if account.PasswordHash == "" {
		record.Password = account.LegacyPassword
	}
	for _, tx := range account.Transactions {
		record.Transactions = append(record.Transactions, transactionRecord{
			ID:       tx.ID,
			Reason:   tx.Reason,
			Amount:   minorNumber(tx.Amount),
			Type:     string(tx.Kind),
			Source:   string(tx.Source),
			Category: tx.Category,
			Date:     tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	if account.Goal != nil {
		record.Goal = &goalRecord{Name: account.Goal.Name, Amount: minorNumber(account.Goal.Amount)}
	}
	if !account.Job.IsZero() {
		record.JobSettings = &jobRecord{
			HourlyRate:   json.Number(account.Job.HourlyRate.String()),
			WeekdayHours: json.Number(account.Job.WeekdayHours.String()),
			Weekend:      account.Job.Weekend,
			WeekendHours: json.Number(account.Job.WeekendHours.String()),
		}
	}
	if account.LastPaycheckAt != nil {
		ms := account.LastPaycheckAt.UnixMilli()
		record.LastPaycheck = &ms
	}
	return json.Marshal(record)
}

// UnmarshalAccount restores an account, defaulting every absent field.
func UnmarshalAccount(username string, data []byte) (models.Account, error) {
	var record accountRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.Account{}, fmt.Errorf("decode account %q: %w", username, err)
	}
	balance, err := parseMinor(record.Balance)
	if err != nil {
		return models.Account{}, fmt.Errorf("decode account %q balance: %w", username, err)
	}
	account := models.Account{
		Username:          username,
		PasswordHash:      record.PasswordHash,
		Balance:           balance,
		BalanceSet:        record.BalanceSet,
		Transactions:      make([]models.Transaction, 0, len(record.Transactions)),
		LastTransactionID: record.NextID,
		Avatar:            record.Avatar,
	}
	if record.PasswordHash == "" {
		account.LegacyPassword = record.Password
	}
	for _, item := range record.Transactions {
		tx, err := restoreTransaction(item)
		if err != nil {
			return models.Account{}, fmt.Errorf("decode account %q: %w", username, err)
		}
		if tx.ID > account.LastTransactionID {
			account.LastTransactionID = tx.ID
		}
		account.Transactions = append(account.Transactions, tx)
	}
	if record.Goal != nil && record.Goal.Name != "" {
		amount, err := parseMinor(record.Goal.Amount)
		if err != nil {
			return models.Account{}, fmt.Errorf("decode account %q goal: %w", username, err)
		}
		account.Goal = &models.SavingsGoal{Name: record.Goal.Name, Amount: amount}
	}
	if record.JobSettings != nil {
		job, err := restoreJob(*record.JobSettings)
		if err != nil {
			return models.Account{}, fmt.Errorf("decode account %q job settings: %w", username, err)
		}
		account.Job = job
	}
	if record.LastPaycheck != nil {
		at := time.UnixMilli(*record.LastPaycheck).UTC()
		account.LastPaycheckAt = &at
	}
	return account, nil
}

func restoreTransaction(item transactionRecord) (models.Transaction, error) {
	kind := models.Kind(item.Type)
	switch kind {
	case models.KindSetInitial, models.KindGain, models.KindSpend:
	default:
		return models.Transaction{}, fmt.Errorf("transaction %d: unknown type %q", item.ID, item.Type)
	}
	amount, err := parseMinor(item.Amount)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %d amount: %w", item.ID, err)
	}
	source, ok := models.ParseSource(item.Source)
	if !ok {
		source = models.SourceCash
	}
	category := item.Category
	if category == "" {
		category = models.DefaultCategory
	}
	return models.Transaction{
		ID:        item.ID,
		Kind:      kind,
		Amount:    amount,
		Source:    source,
		Category:  category,
		Reason:    item.Reason,
		CreatedAt: restoreDate(item.Date, item.ID),
	}, nil
}

func restoreDate(raw string, id int64) time.Time {
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed.UTC()
	}
	if id >= legacyIDThreshold {
		return time.UnixMilli(id).UTC()
	}
	return time.Time{}
}

func restoreJob(record jobRecord) (models.JobProfile, error) {
	rate, err := parseDecimal(record.HourlyRate)
	if err != nil {
		return models.JobProfile{}, err
	}
	weekday, err := parseDecimal(record.WeekdayHours)
	if err != nil {
		return models.JobProfile{}, err
	}
	weekend, err := parseDecimal(record.WeekendHours)
	if err != nil {
		return models.JobProfile{}, err
	}
	return models.JobProfile{
		HourlyRate:   rate,
		WeekdayHours: weekday,
		Weekend:      record.Weekend,
		WeekendHours: weekend,
	}, nil
}

func minorNumber(value int64) json.Number {
	return json.Number(money.FormatMinor(value))
}

func parseMinor(n json.Number) (int64, error) {
	value, err := parseDecimal(n)
	if err != nil {
		return 0, err
	}
	return money.FromDecimalChecked(value)
}

func parseDecimal(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(n))
}
