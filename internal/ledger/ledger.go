// Package ledger applies balance-affecting operations to a single wallet
// account. It performs no I/O: callers load an account, wrap it in a Ledger,
// mutate it, and persist the result.
package ledger

import (
	"errors"
	"strings"
	"time"

	"wallet/internal/models"
	"wallet/internal/money"
)

var (
	ErrNotANumber          = errors.New("amount is not a number")
	ErrInvalidAmount       = errors.New("amount must be a positive number")
	ErrMissingReason       = errors.New("reason is required")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrEmptyLedger         = errors.New("no transactions to undo")
	ErrAlreadyInitialized  = errors.New("balance already initialized")
	ErrMissingGoalName     = errors.New("goal name is required")
	ErrBalanceOutOfRange   = errors.New("balance out of range")
)

const InitialBalanceReason = "Initial Balance"

type Clock func() time.Time

// Ledger is the session object for one account. It is not safe for
// concurrent use; each request builds its own.
type Ledger struct {
	account *models.Account
	now     Clock
}

func New(account *models.Account, now Clock) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{account: account, now: now}
}

func (l *Ledger) Account() *models.Account {
	return l.account
}

// ParseInitialBalance accepts any finite number, including negatives.
func ParseInitialBalance(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil {
		return 0, ErrNotANumber
	}
	return amount, nil
}

// ParseAmount accepts strictly positive numbers only.
func ParseAmount(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// InitializeBalance records the starting balance. It can run once per
// account; deleting the resulting transaction later does not re-open it.
func (l *Ledger) InitializeBalance(amount int64) (models.Transaction, error) {
	if l.account.BalanceSet {
		return models.Transaction{}, ErrAlreadyInitialized
	}
	balance, err := l.shiftedBalance(amount)
	if err != nil {
		return models.Transaction{}, err
	}
	tx := l.prepend(models.KindSetInitial, amount, InitialBalanceReason, models.SourceCash, models.DefaultCategory)
	l.account.Balance = balance
	l.account.BalanceSet = true
	return tx, nil
}

func (l *Ledger) RecordGain(amount int64, reason string, source models.Source) (models.Transaction, error) {
	return l.recordGain(amount, reason, source, models.DefaultCategory)
}

func (l *Ledger) recordGain(amount int64, reason string, source models.Source, category string) (models.Transaction, error) {
	reason, err := validateEntry(amount, reason)
	if err != nil {
		return models.Transaction{}, err
	}
	balance, err := l.shiftedBalance(amount)
	if err != nil {
		return models.Transaction{}, err
	}
	tx := l.prepend(models.KindGain, amount, reason, source, category)
	l.account.Balance = balance
	return tx, nil
}

func (l *Ledger) RecordSpend(amount int64, reason string, source models.Source, category string) (models.Transaction, error) {
	reason, err := validateEntry(amount, reason)
	if err != nil {
		return models.Transaction{}, err
	}
	if amount > l.account.Balance {
		return models.Transaction{}, ErrInsufficientFunds
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = models.DefaultCategory
	}
	tx := l.prepend(models.KindSpend, amount, reason, source, category)
	l.account.Balance -= amount
	return tx, nil
}

// DeleteTransaction removes the transaction and reverses exactly the effect
// it recorded, independent of its position in the log.
func (l *Ledger) DeleteTransaction(id int64) (models.Transaction, error) {
	for i, tx := range l.account.Transactions {
		if tx.ID != id {
			continue
		}
		balance, err := l.shiftedBalance(-tx.Effect())
		if err != nil {
			return models.Transaction{}, err
		}
		l.account.Balance = balance
		l.account.Transactions = append(l.account.Transactions[:i:i], l.account.Transactions[i+1:]...)
		return tx, nil
	}
	return models.Transaction{}, ErrTransactionNotFound
}

func (l *Ledger) UndoLast() (models.Transaction, error) {
	if len(l.account.Transactions) == 0 {
		return models.Transaction{}, ErrEmptyLedger
	}
	return l.DeleteTransaction(l.account.Transactions[0].ID)
}

// Transactions returns a copy of the log, newest first.
func (l *Ledger) Transactions() []models.Transaction {
	out := make([]models.Transaction, len(l.account.Transactions))
	copy(out, l.account.Transactions)
	return out
}

func (l *Ledger) SetGoal(name string, amount int64) (models.SavingsGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SavingsGoal{}, ErrMissingGoalName
	}
	if amount <= 0 {
		return models.SavingsGoal{}, ErrInvalidAmount
	}
	goal := models.SavingsGoal{Name: name, Amount: amount}
	l.account.Goal = &goal
	return goal, nil
}

// SetAvatar stores an opaque image reference; an empty string clears it.
func (l *Ledger) SetAvatar(ref string) {
	l.account.Avatar = strings.TrimSpace(ref)
}

// shiftedBalance returns the balance after applying delta, or
// ErrBalanceOutOfRange when either value leaves the money range.
func (l *Ledger) shiftedBalance(delta int64) (int64, error) {
	if !money.InRange(delta) || !money.InRange(l.account.Balance) {
		return 0, ErrBalanceOutOfRange
	}
	next := l.account.Balance + delta
	if !money.InRange(next) {
		return 0, ErrBalanceOutOfRange
	}
	return next, nil
}

func (l *Ledger) prepend(kind models.Kind, amount int64, reason string, source models.Source, category string) models.Transaction {
	if source == "" {
		source = models.SourceCash
	}
	l.account.LastTransactionID++
	tx := models.Transaction{
		ID:        l.account.LastTransactionID,
		Kind:      kind,
		Amount:    amount,
		Source:    source,
		Category:  category,
		Reason:    reason,
		CreatedAt: l.now().UTC(),
	}
	l.account.Transactions = append([]models.Transaction{tx}, l.account.Transactions...)
	return tx
}

func validateEntry(amount int64, reason string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrMissingReason
	}
	return reason, nil
}
