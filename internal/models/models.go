package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindSetInitial Kind = "set"
	KindGain       Kind = "gain"
	KindSpend      Kind = "spend"
)

type Source string

const (
	SourceCash Source = "cash"
	SourceBank Source = "bank"
)

// ParseSource accepts "cash" or "bank" in any case; anything else is false.
func ParseSource(raw string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceCash:
		return SourceCash, true
	case SourceBank:
		return SourceBank, true
	}
	return "", false
}

const DefaultCategory = "General"

// Account is the full per-user wallet record. It is loaded and saved as a whole.
type Account struct {
	Username       string
	PasswordHash   string
	LegacyPassword string

	Balance           int64
	BalanceSet        bool
	Transactions      []Transaction
	LastTransactionID int64

	Goal           *SavingsGoal
	Job            JobProfile
	LastPaycheckAt *time.Time
	Avatar         string
}

// Transaction is immutable once created. Amount is in minor units; its
// signed effect on the balance comes from Kind.
type Transaction struct {
	ID        int64
	Kind      Kind
	Amount    int64
	Source    Source
	Category  string
	Reason    string
	CreatedAt time.Time
}

// Effect returns the signed change this transaction applied to the balance.
func (t Transaction) Effect() int64 {
	if t.Kind == KindSpend {
		return -t.Amount
	}
	return t.Amount
}

type SavingsGoal struct {
	Name   string
	Amount int64
}

type JobProfile struct {
	HourlyRate   decimal.Decimal
	WeekdayHours decimal.Decimal
	Weekend      bool
	WeekendHours decimal.Decimal
}

func (p JobProfile) IsZero() bool {
	return !p.Weekend && p.HourlyRate.IsZero() && p.WeekdayHours.IsZero() && p.WeekendHours.IsZero()
}
