package handlers

import (
	"context"

	"wallet/internal/ledger"
	"wallet/internal/models"
	"wallet/internal/services"
	"wallet/internal/store"
)

type WalletService interface {
	Signup(ctx context.Context, username, password string) (models.Account, error)
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
	AccountExists(ctx context.Context, username string) (bool, error)
	Wallet(ctx context.Context, username string) (services.WalletSummary, error)
	InitializeBalance(ctx context.Context, username, rawAmount string) (services.Change, error)
	RecordTransaction(ctx context.Context, req services.TransactionRequest) (services.Change, error)
	DeleteTransaction(ctx context.Context, username string, id int64) (services.Change, error)
	UndoLast(ctx context.Context, username string) (services.Change, error)
	SetGoal(ctx context.Context, username, name, rawAmount string) (models.SavingsGoal, error)
	SetJobProfile(ctx context.Context, username string, req services.JobRequest) (services.PaycheckSummary, error)
	PaycheckStatus(ctx context.Context, username string) (services.PaycheckSummary, error)
	CollectPaycheck(ctx context.Context, username string) (services.Change, error)
	Spending(ctx context.Context, username string) ([]ledger.CategoryTotal, error)
	SetAvatar(ctx context.Context, username, ref string) error
	SelfCheck(ctx context.Context, username string) (ledger.Reconciliation, error)
	Activity(ctx context.Context, username string, limit, offset int) ([]store.AuditEntry, error)
}

var _ WalletService = (*services.WalletService)(nil)
