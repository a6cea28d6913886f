package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"wallet/internal/db"
	"wallet/internal/ledger"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSource      = errors.New("source must be cash or bank")
	ErrInvalidKind        = errors.New("transaction type must be gain or spend")
	ErrAvatarTooLarge     = errors.New("avatar too large")
)

const (
	ActionSignup          = "auth.signup"
	ActionPasswordUpgrade = "auth.password_upgrade"
	ActionInitialize      = "wallet.init"
	ActionGain            = "wallet.gain"
	ActionSpend           = "wallet.spend"
	ActionDelete          = "wallet.delete"
	ActionUndo            = "wallet.undo"
	ActionGoal            = "wallet.goal"
	ActionJob             = "wallet.job"
	ActionPaycheck        = "wallet.paycheck"
	ActionAvatar          = "wallet.avatar"
	ActionImport          = "wallet.import"
)

type WalletService struct {
	txRunner       db.TxRunner
	accounts       AccountStore
	audit          AuditStore
	hub            BalanceHub
	now            ledger.Clock
	maxAvatarBytes int
}

type AccountStore interface {
	Get(ctx context.Context, q store.Getter, username string) (models.Account, error)
	Put(ctx context.Context, tx store.Execer, account models.Account) error
	Exists(ctx context.Context, q store.Getter, username string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actor, action, entityType, entityID, data string) error
	List(ctx context.Context, actor string, limit, offset int) ([]store.AuditEntry, error)
}

type BalanceHub interface {
	BroadcastBalance(username string, update websocket.BalanceUpdate)
}

// NewWalletService wires the account workflow. hub may be nil when nobody
// listens for pushes; now defaults to time.Now; maxAvatarBytes <= 0 disables
// the avatar size check.
func NewWalletService(txRunner db.TxRunner, accounts AccountStore, audit AuditStore, hub BalanceHub, now ledger.Clock, maxAvatarBytes int) *WalletService {
	if now == nil {
		now = time.Now
	}
	return &WalletService{
		txRunner:       txRunner,
		accounts:       accounts,
		audit:          audit,
		hub:            hub,
		now:            now,
		maxAvatarBytes: maxAvatarBytes,
	}
}

// Change is the outcome of a balance-affecting operation.
type Change struct {
	Transaction models.Transaction
	Balance     int64
}

type WalletSummary struct {
	Account  models.Account
	Paycheck PaycheckSummary
}

type PaycheckSummary struct {
	Status          ledger.PaycheckStatus
	MonthlyEstimate int64
	Job             models.JobProfile
	LastPaycheckAt  *time.Time
}

type TransactionRequest struct {
	Username string
	Kind     models.Kind
	Amount   string
	Reason   string
	Source   string
	Category string
}

// JobRequest carries raw form values; blank fields count as zero.
type JobRequest struct {
	HourlyRate   string
	WeekdayHours string
	Weekend      bool
	WeekendHours string
}

type auditEvent struct {
	entityType string
	entityID   string
	data       map[string]any
}

func transactionEvent(tx models.Transaction) auditEvent {
	return auditEvent{
		entityType: "transaction",
		entityID:   strconv.FormatInt(tx.ID, 10),
		data: map[string]any{
			"type":     tx.Kind,
			"amount":   money.FormatMinor(tx.Amount),
			"source":   tx.Source,
			"category": tx.Category,
			"reason":   tx.Reason,
		},
	}
}

func (s *WalletService) Wallet(ctx context.Context, username string) (WalletSummary, error) {
	var summary WalletSummary
	err := s.view(ctx, username, func(l *ledger.Ledger) error {
		summary = WalletSummary{
			Account:  *l.Account(),
			Paycheck: paycheckSummary(l),
		}
		return nil
	})
	return summary, err
}

func (s *WalletService) InitializeBalance(ctx context.Context, username, rawAmount string) (Change, error) {
	amount, err := ledger.ParseInitialBalance(rawAmount)
	if err != nil {
		return Change{}, err
	}
	var change Change
	err = s.mutate(ctx, username, ActionInitialize, func(l *ledger.Ledger) (auditEvent, error) {
		tx, err := l.InitializeBalance(amount)
		if err != nil {
			return auditEvent{}, err
		}
		change = Change{Transaction: tx, Balance: l.Account().Balance}
		return transactionEvent(tx), nil
	})
	return change, err
}

func (s *WalletService) RecordTransaction(ctx context.Context, req TransactionRequest) (Change, error) {
	if req.Kind != models.KindGain && req.Kind != models.KindSpend {
		return Change{}, ErrInvalidKind
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		return Change{}, err
	}
	source := models.SourceCash
	if strings.TrimSpace(req.Source) != "" {
		parsed, ok := models.ParseSource(req.Source)
		if !ok {
			return Change{}, ErrInvalidSource
		}
		source = parsed
	}
	action := ActionGain
	if req.Kind == models.KindSpend {
		action = ActionSpend
	}
	var change Change
	err = s.mutate(ctx, req.Username, action, func(l *ledger.Ledger) (auditEvent, error) {
		var tx models.Transaction
		var err error
		if req.Kind == models.KindSpend {
			tx, err = l.RecordSpend(amount, req.Reason, source, strings.TrimSpace(req.Category))
		} else {
			tx, err = l.RecordGain(amount, req.Reason, source)
		}
		if err != nil {
			return auditEvent{}, err
		}
		change = Change{Transaction: tx, Balance: l.Account().Balance}
		return transactionEvent(tx), nil
	})
	return change, err
}

func (s *WalletService) DeleteTransaction(ctx context.Context, username string, id int64) (Change, error) {
	var change Change
	err := s.mutate(ctx, username, ActionDelete, func(l *ledger.Ledger) (auditEvent, error) {
		tx, err := l.DeleteTransaction(id)
		if err != nil {
			return auditEvent{}, err
		}
		change = Change{Transaction: tx, Balance: l.Account().Balance}
		return transactionEvent(tx), nil
	})
	return change, err
}

func (s *WalletService) UndoLast(ctx context.Context, username string) (Change, error) {
	var change Change
	err := s.mutate(ctx, username, ActionUndo, func(l *ledger.Ledger) (auditEvent, error) {
		tx, err := l.UndoLast()
		if err != nil {
			return auditEvent{}, err
		}
		change = Change{Transaction: tx, Balance: l.Account().Balance}
		return transactionEvent(tx), nil
	})
	return change, err
}

func (s *WalletService) SetGoal(ctx context.Context, username, name, rawAmount string) (models.SavingsGoal, error) {
	if strings.TrimSpace(name) == "" {
		return models.SavingsGoal{}, ledger.ErrMissingGoalName
	}
	amount, err := ledger.ParseAmount(rawAmount)
	if err != nil {
		return models.SavingsGoal{}, err
	}
	var goal models.SavingsGoal
	err = s.mutate(ctx, username, ActionGoal, func(l *ledger.Ledger) (auditEvent, error) {
		set, err := l.SetGoal(name, amount)
		if err != nil {
			return auditEvent{}, err
		}
		goal = set
		return auditEvent{
			entityType: "goal",
			entityID:   username,
			data:       map[string]any{"name": goal.Name, "amount": money.FormatMinor(goal.Amount)},
		}, nil
	})
	return goal, err
}

func (s *WalletService) SetJobProfile(ctx context.Context, username string, req JobRequest) (PaycheckSummary, error) {
	profile, err := parseJobRequest(req)
	if err != nil {
		return PaycheckSummary{}, err
	}
	var summary PaycheckSummary
	err = s.mutate(ctx, username, ActionJob, func(l *ledger.Ledger) (auditEvent, error) {
		if err := l.SetJobProfile(profile); err != nil {
			return auditEvent{}, err
		}
		summary = paycheckSummary(l)
		return auditEvent{
			entityType: "job",
			entityID:   username,
			data:       map[string]any{"weekly_income": money.FormatMinor(summary.Status.WeeklyIncome)},
		}, nil
	})
	return summary, err
}

func (s *WalletService) PaycheckStatus(ctx context.Context, username string) (PaycheckSummary, error) {
	var summary PaycheckSummary
	err := s.view(ctx, username, func(l *ledger.Ledger) error {
		summary = paycheckSummary(l)
		return nil
	})
	return summary, err
}

func (s *WalletService) CollectPaycheck(ctx context.Context, username string) (Change, error) {
	var change Change
	err := s.mutate(ctx, username, ActionPaycheck, func(l *ledger.Ledger) (auditEvent, error) {
		tx, err := l.CollectPaycheck()
		if err != nil {
			return auditEvent{}, err
		}
		change = Change{Transaction: tx, Balance: l.Account().Balance}
		return transactionEvent(tx), nil
	})
	return change, err
}

func (s *WalletService) Spending(ctx context.Context, username string) ([]ledger.CategoryTotal, error) {
	var totals []ledger.CategoryTotal
	err := s.view(ctx, username, func(l *ledger.Ledger) error {
		totals = l.SpendingByCategory()
		return nil
	})
	return totals, err
}

func (s *WalletService) SetAvatar(ctx context.Context, username, ref string) error {
	if s.maxAvatarBytes > 0 && len(ref) > s.maxAvatarBytes {
		return ErrAvatarTooLarge
	}
	err := s.mutate(ctx, username, ActionAvatar, func(l *ledger.Ledger) (auditEvent, error) {
		l.SetAvatar(ref)
		return auditEvent{
			entityType: "avatar",
			entityID:   username,
			data:       map[string]any{"bytes": len(l.Account().Avatar)},
		}, nil
	})
	return err
}

// SelfCheck compares the stored balance with the sum of the log.
func (s *WalletService) SelfCheck(ctx context.Context, username string) (ledger.Reconciliation, error) {
	var result ledger.Reconciliation
	err := s.view(ctx, username, func(l *ledger.Ledger) error {
		result = l.Reconcile()
		if !result.Balanced() {
			log.Printf("self-check: %s stored=%d ledger=%d", username, result.StoredBalance, result.LedgerSum)
		}
		return nil
	})
	return result, err
}

func (s *WalletService) Activity(ctx context.Context, username string, limit, offset int) ([]store.AuditEntry, error) {
	return s.audit.List(ctx, username, limit, offset)
}

func (s *WalletService) view(ctx context.Context, username string, fn func(*ledger.Ledger) error) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.load(ctx, tx, username)
		if err != nil {
			return err
		}
		return fn(ledger.New(&account, s.now))
	})
}

// mutate runs load, change, save and audit in one transaction and pushes the
// new balance once it has committed.
func (s *WalletService) mutate(ctx context.Context, username, action string, fn func(*ledger.Ledger) (auditEvent, error)) error {
	var saved models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.load(ctx, tx, username)
		if err != nil {
			return err
		}
		event, err := fn(ledger.New(&account, s.now))
		if err != nil {
			return err
		}
		if err := s.accounts.Put(ctx, tx, account); err != nil {
			return err
		}
		data, err := auditData(event.data)
		if err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, username, action, event.entityType, event.entityID, data); err != nil {
			return err
		}
		saved = account
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcast(saved, action)
	return nil
}

func auditData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode audit data: %w", err)
	}
	return string(encoded), nil
}

func (s *WalletService) load(ctx context.Context, tx *sqlx.Tx, username string) (models.Account, error) {
	account, err := s.accounts.Get(ctx, tx, username)
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	return account, err
}

func (s *WalletService) broadcast(account models.Account, action string) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastBalance(account.Username, websocket.BalanceUpdate{
		Username:          account.Username,
		Balance:           money.FormatMinor(account.Balance),
		BalanceSet:        account.BalanceSet,
		Event:             action,
		LastTransactionID: account.LastTransactionID,
	})
}

func paycheckSummary(l *ledger.Ledger) PaycheckSummary {
	status := l.PaycheckStatus()
	account := l.Account()
	return PaycheckSummary{
		Status:          status,
		MonthlyEstimate: ledger.MonthlyEstimate(status.WeeklyIncome),
		Job:             account.Job,
		LastPaycheckAt:  account.LastPaycheckAt,
	}
}

func parseJobRequest(req JobRequest) (models.JobProfile, error) {
	rate, err := parseJobNumber(req.HourlyRate)
	if err != nil {
		return models.JobProfile{}, err
	}
	weekday, err := parseJobNumber(req.WeekdayHours)
	if err != nil {
		return models.JobProfile{}, err
	}
	weekend, err := parseJobNumber(req.WeekendHours)
	if err != nil {
		return models.JobProfile{}, err
	}
	return models.JobProfile{
		HourlyRate:   rate,
		WeekdayHours: weekday,
		Weekend:      req.Weekend,
		WeekendHours: weekend,
	}, nil
}

func parseJobNumber(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ledger.ErrInvalidJobProfile
	}
	return value, nil
}

func (s *WalletService) AccountExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.accounts.Exists(ctx, tx, username)
		exists = found
		return err
	})
	return exists, err
}
