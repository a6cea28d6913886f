package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/ledger"
	"wallet/internal/models"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubAccountStore struct {
	getFn    func(ctx context.Context, q store.Getter, username string) (models.Account, error)
	putFn    func(ctx context.Context, tx store.Execer, account models.Account) error
	existsFn func(ctx context.Context, q store.Getter, username string) (bool, error)
}

func (s stubAccountStore) Get(ctx context.Context, q store.Getter, username string) (models.Account, error) {
	if s.getFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getFn(ctx, q, username)
}

func (s stubAccountStore) Put(ctx context.Context, tx store.Execer, account models.Account) error {
	if s.putFn == nil {
		return nil
	}
	return s.putFn(ctx, tx, account)
}

func (s stubAccountStore) Exists(ctx context.Context, q store.Getter, username string) (bool, error) {
	if s.existsFn == nil {
		return false, nil
	}
	return s.existsFn(ctx, q, username)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actor, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, actor string, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actor, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actor, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, actor string, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, actor, limit, offset)
}

type stubHub struct {
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.calls = append(s.calls, update)
}

var unitNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func unitClock() time.Time { return unitNow }

func accountWithBalance(balance int64) models.Account {
	return models.Account{
		Username:   "alice",
		Balance:    balance,
		BalanceSet: true,
		Transactions: []models.Transaction{
			{ID: 1, Kind: models.KindSetInitial, Amount: balance, Source: models.SourceCash, Category: models.DefaultCategory, Reason: ledger.InitialBalanceReason},
		},
		LastTransactionID: 1,
	}
}

func loadOnly(account models.Account) func(context.Context, store.Getter, string) (models.Account, error) {
	return func(context.Context, store.Getter, string) (models.Account, error) {
		return account, nil
	}
}

func TestRecordTransactionInvalidAmount(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: func(context.Context, store.Getter, string) (models.Account, error) {
			t.Fatalf("unexpected store call")
			return models.Account{}, nil
		},
	}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	for _, amount := range []string{"", "abc", "0", "-5"} {
		_, err := service.RecordTransaction(context.Background(), TransactionRequest{
			Username: "alice", Kind: models.KindGain, Amount: amount, Reason: "gift",
		})
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Fatalf("amount %q: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestRecordTransactionInvalidSourceAndKind(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	_, err := service.RecordTransaction(context.Background(), TransactionRequest{
		Username: "alice", Kind: models.KindGain, Amount: "5", Reason: "gift", Source: "card",
	})
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
	_, err = service.RecordTransaction(context.Background(), TransactionRequest{
		Username: "alice", Kind: models.KindSetInitial, Amount: "5", Reason: "x",
	})
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestRecordSpendInsufficientFundsDoesNotSave(t *testing.T) {
	hub := &stubHub{}
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(accountWithBalance(10000)),
		putFn: func(context.Context, store.Execer, models.Account) error {
			t.Fatalf("unexpected put")
			return nil
		},
	}, stubAuditStore{
		logFn: func(context.Context, store.Execer, string, string, string, string, string) error {
			t.Fatalf("unexpected audit")
			return nil
		},
	}, hub, unitClock, 0)

	_, err := service.RecordTransaction(context.Background(), TransactionRequest{
		Username: "alice", Kind: models.KindSpend, Amount: "100.01", Reason: "rent",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatalf("expected no broadcast, got %d", len(hub.calls))
	}
}

func TestRecordSpendSavesAuditsAndBroadcasts(t *testing.T) {
	hub := &stubHub{}
	var saved models.Account
	var auditAction, auditEntity string
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(accountWithBalance(10000)),
		putFn: func(_ context.Context, _ store.Execer, account models.Account) error {
			saved = account
			return nil
		},
	}, stubAuditStore{
		logFn: func(_ context.Context, _ store.Execer, actor, action, entityType, entityID, _ string) error {
			if actor != "alice" || entityType != "transaction" {
				t.Fatalf("unexpected audit: %s %s", actor, entityType)
			}
			auditAction, auditEntity = action, entityID
			return nil
		},
	}, hub, unitClock, 0)

	change, err := service.RecordTransaction(context.Background(), TransactionRequest{
		Username: "alice", Kind: models.KindSpend, Amount: "30", Reason: " lunch ", Source: "BANK", Category: "Food",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Balance != 7000 || change.Transaction.ID != 2 {
		t.Fatalf("unexpected change: %#v", change)
	}
	if change.Transaction.Source != models.SourceBank || change.Transaction.Reason != "lunch" || change.Transaction.Category != "Food" {
		t.Fatalf("unexpected transaction: %#v", change.Transaction)
	}
	if !change.Transaction.CreatedAt.Equal(unitNow) {
		t.Fatalf("unexpected created at: %v", change.Transaction.CreatedAt)
	}
	if saved.Balance != 7000 || len(saved.Transactions) != 2 || saved.Transactions[0].ID != 2 {
		t.Fatalf("unexpected saved account: %#v", saved)
	}
	if auditAction != ActionSpend || auditEntity != "2" {
		t.Fatalf("unexpected audit: %s %s", auditAction, auditEntity)
	}
	if len(hub.calls) != 1 || hub.calls[0].Balance != "70.00" || hub.calls[0].Event != ActionSpend {
		t.Fatalf("unexpected broadcasts: %#v", hub.calls)
	}
}

func TestMutateAccountNotFound(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	if _, err := service.UndoLast(context.Background(), "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTxRunnerErrorSkipsBroadcast(t *testing.T) {
	hub := &stubHub{}
	boom := errors.New("boom")
	service := NewWalletService(fakeTxRunner{err: boom}, stubAccountStore{}, stubAuditStore{}, hub, unitClock, 0)
	if _, err := service.InitializeBalance(context.Background(), "alice", "100"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatalf("expected no broadcast")
	}
}

func TestAuditFailureAbortsMutation(t *testing.T) {
	hub := &stubHub{}
	boom := errors.New("audit down")
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(accountWithBalance(10000)),
	}, stubAuditStore{
		logFn: func(context.Context, store.Execer, string, string, string, string, string) error {
			return boom
		},
	}, hub, unitClock, 0)
	if _, err := service.UndoLast(context.Background(), "alice"); !errors.Is(err, boom) {
		t.Fatalf("expected audit error, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatalf("expected no broadcast")
	}
}

func TestInitializeBalanceNotANumber(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	if _, err := service.InitializeBalance(context.Background(), "alice", "ten"); !errors.Is(err, ledger.ErrNotANumber) {
		t.Fatalf("expected ErrNotANumber, got %v", err)
	}
}

func TestSetGoalValidation(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	if _, err := service.SetGoal(context.Background(), "alice", " ", "abc"); !errors.Is(err, ledger.ErrMissingGoalName) {
		t.Fatalf("expected ErrMissingGoalName, got %v", err)
	}
	if _, err := service.SetGoal(context.Background(), "alice", "Bike", "0"); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSetJobProfileRejectsBadNumbers(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(accountWithBalance(0)),
	}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	for _, req := range []JobRequest{
		{HourlyRate: "ten", WeekdayHours: "8"},
		{HourlyRate: "10", WeekdayHours: "25"},
		{HourlyRate: "-1", WeekdayHours: "8"},
		{HourlyRate: "1e17", WeekdayHours: "24"},
	} {
		if _, err := service.SetJobProfile(context.Background(), "alice", req); !errors.Is(err, ledger.ErrInvalidJobProfile) {
			t.Fatalf("%#v: expected ErrInvalidJobProfile, got %v", req, err)
		}
	}
}

func TestCollectPaycheckUsesClock(t *testing.T) {
	account := accountWithBalance(0)
	account.Job = models.JobProfile{HourlyRate: decimal.NewFromInt(15), WeekdayHours: decimal.NewFromInt(8)}
	last := unitNow.Add(-3 * 24 * time.Hour)
	account.LastPaycheckAt = &last

	service := NewWalletService(fakeTxRunner{}, stubAccountStore{getFn: loadOnly(account)}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	summary, err := service.PaycheckStatus(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status.State != ledger.PaycheckWaiting || summary.Status.Remaining != 4*24*time.Hour {
		t.Fatalf("unexpected status: %#v", summary.Status)
	}
	if summary.MonthlyEstimate != 259800 {
		t.Fatalf("unexpected monthly estimate: %d", summary.MonthlyEstimate)
	}
	if _, err := service.CollectPaycheck(context.Background(), "alice"); !errors.Is(err, ledger.ErrPaycheckNotReady) {
		t.Fatalf("expected ErrPaycheckNotReady, got %v", err)
	}

	later := func() time.Time { return unitNow.Add(5 * 24 * time.Hour) }
	var saved models.Account
	service = NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(account),
		putFn: func(_ context.Context, _ store.Execer, a models.Account) error {
			saved = a
			return nil
		},
	}, stubAuditStore{}, &stubHub{}, later, 0)
	change, err := service.CollectPaycheck(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Transaction.Amount != 60000 || change.Balance != 60000 {
		t.Fatalf("unexpected change: %#v", change)
	}
	if saved.LastPaycheckAt == nil || !saved.LastPaycheckAt.Equal(later()) {
		t.Fatalf("unexpected last paycheck: %v", saved.LastPaycheckAt)
	}
}

func TestSetAvatarTooLarge(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: func(context.Context, store.Getter, string) (models.Account, error) {
			t.Fatalf("unexpected store call")
			return models.Account{}, nil
		},
	}, stubAuditStore{}, &stubHub{}, unitClock, 8)
	if err := service.SetAvatar(context.Background(), "alice", "data:image/png;base64,AAAA"); !errors.Is(err, ErrAvatarTooLarge) {
		t.Fatalf("expected ErrAvatarTooLarge, got %v", err)
	}
}

func TestSignupValidatesAndRejectsTaken(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		existsFn: func(context.Context, store.Getter, string) (bool, error) { return true, nil },
		putFn: func(context.Context, store.Execer, models.Account) error {
			t.Fatalf("unexpected put")
			return nil
		},
	}, stubAuditStore{}, &stubHub{}, unitClock, 0)

	if _, err := service.Signup(context.Background(), "al ice", "pw"); err == nil {
		t.Fatal("expected invalid username")
	}
	if _, err := service.Signup(context.Background(), "alice", " "); err == nil {
		t.Fatal("expected invalid password")
	}
	if _, err := service.Signup(context.Background(), "alice", "pw"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthenticateUpgradesLegacyPassword(t *testing.T) {
	var saved models.Account
	var action string
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(models.Account{Username: "alice", LegacyPassword: "pw"}),
		putFn: func(_ context.Context, _ store.Execer, account models.Account) error {
			saved = account
			return nil
		},
	}, stubAuditStore{
		logFn: func(_ context.Context, _ store.Execer, _, a, _, _, _ string) error {
			action = a
			return nil
		},
	}, &stubHub{}, unitClock, 0)

	if _, err := service.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	account, err := service.Authenticate(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.LegacyPassword != "" || saved.LegacyPassword != "" {
		t.Fatal("expected legacy password to be cleared")
	}
	if !auth.CheckPassword(saved.PasswordHash, "pw") {
		t.Fatal("expected saved hash to match")
	}
	if action != ActionPasswordUpgrade {
		t.Fatalf("unexpected audit action: %s", action)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	if _, err := service.Authenticate(context.Background(), "ghost", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuditData(t *testing.T) {
	if data, err := auditData(nil); err != nil || data != "{}" {
		t.Fatalf("unexpected empty data: %q %v", data, err)
	}
	if data, err := auditData(map[string]any{"amount": "5.00"}); err != nil || data != `{"amount":"5.00"}` {
		t.Fatalf("unexpected data: %q %v", data, err)
	}
	if _, err := auditData(map[string]any{"ratio": math.Inf(1)}); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestRecordTransactionRejectsBalanceOverflow(t *testing.T) {
	account := accountWithBalance(99999999999999)
	saved := false
	service := NewWalletService(fakeTxRunner{}, stubAccountStore{
		getFn: loadOnly(account),
		putFn: func(context.Context, store.Execer, models.Account) error {
			saved = true
			return nil
		},
	}, stubAuditStore{}, &stubHub{}, unitClock, 0)
	_, err := service.RecordTransaction(context.Background(), TransactionRequest{
		Username: "alice", Kind: models.KindGain, Amount: "1", Reason: "tip",
	})
	if !errors.Is(err, ledger.ErrBalanceOutOfRange) {
		t.Fatalf("expected ErrBalanceOutOfRange, got %v", err)
	}
	if saved {
		t.Fatalf("account must not be saved")
	}
}
