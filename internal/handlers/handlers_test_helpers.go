package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/config"
	"wallet/internal/ledger"
	"wallet/internal/models"
	"wallet/internal/services"
	"wallet/internal/store"
	"wallet/internal/websocket"
)

type stubService struct {
	signupFn       func(ctx context.Context, username, password string) (models.Account, error)
	authenticateFn func(ctx context.Context, username, password string) (models.Account, error)
	existsFn       func(ctx context.Context, username string) (bool, error)
	walletFn       func(ctx context.Context, username string) (services.WalletSummary, error)
	initFn         func(ctx context.Context, username, rawAmount string) (services.Change, error)
	recordFn       func(ctx context.Context, req services.TransactionRequest) (services.Change, error)
	deleteFn       func(ctx context.Context, username string, id int64) (services.Change, error)
	undoFn         func(ctx context.Context, username string) (services.Change, error)
	goalFn         func(ctx context.Context, username, name, rawAmount string) (models.SavingsGoal, error)
	jobFn          func(ctx context.Context, username string, req services.JobRequest) (services.PaycheckSummary, error)
	paycheckFn     func(ctx context.Context, username string) (services.PaycheckSummary, error)
	collectFn      func(ctx context.Context, username string) (services.Change, error)
	spendingFn     func(ctx context.Context, username string) ([]ledger.CategoryTotal, error)
	avatarFn       func(ctx context.Context, username, ref string) error
	selfCheckFn    func(ctx context.Context, username string) (ledger.Reconciliation, error)
	activityFn     func(ctx context.Context, username string, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubService) Signup(ctx context.Context, username, password string) (models.Account, error) {
	if s.signupFn == nil {
		return models.Account{Username: username}, nil
	}
	return s.signupFn(ctx, username, password)
}

func (s stubService) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	if s.authenticateFn == nil {
		return models.Account{Username: username}, nil
	}
	return s.authenticateFn(ctx, username, password)
}

func (s stubService) AccountExists(ctx context.Context, username string) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, username)
}

func (s stubService) Wallet(ctx context.Context, username string) (services.WalletSummary, error) {
	if s.walletFn == nil {
		return services.WalletSummary{Account: models.Account{Username: username}}, nil
	}
	return s.walletFn(ctx, username)
}

func (s stubService) InitializeBalance(ctx context.Context, username, rawAmount string) (services.Change, error) {
	if s.initFn == nil {
		return services.Change{}, nil
	}
	return s.initFn(ctx, username, rawAmount)
}

func (s stubService) RecordTransaction(ctx context.Context, req services.TransactionRequest) (services.Change, error) {
	if s.recordFn == nil {
		return services.Change{}, nil
	}
	return s.recordFn(ctx, req)
}

func (s stubService) DeleteTransaction(ctx context.Context, username string, id int64) (services.Change, error) {
	if s.deleteFn == nil {
		return services.Change{}, nil
	}
	return s.deleteFn(ctx, username, id)
}

func (s stubService) UndoLast(ctx context.Context, username string) (services.Change, error) {
	if s.undoFn == nil {
		return services.Change{}, nil
	}
	return s.undoFn(ctx, username)
}

func (s stubService) SetGoal(ctx context.Context, username, name, rawAmount string) (models.SavingsGoal, error) {
	if s.goalFn == nil {
		return models.SavingsGoal{}, nil
	}
	return s.goalFn(ctx, username, name, rawAmount)
}

func (s stubService) SetJobProfile(ctx context.Context, username string, req services.JobRequest) (services.PaycheckSummary, error) {
	if s.jobFn == nil {
		return services.PaycheckSummary{}, nil
	}
	return s.jobFn(ctx, username, req)
}

func (s stubService) PaycheckStatus(ctx context.Context, username string) (services.PaycheckSummary, error) {
	if s.paycheckFn == nil {
		return services.PaycheckSummary{}, nil
	}
	return s.paycheckFn(ctx, username)
}

func (s stubService) CollectPaycheck(ctx context.Context, username string) (services.Change, error) {
	if s.collectFn == nil {
		return services.Change{}, nil
	}
	return s.collectFn(ctx, username)
}

func (s stubService) Spending(ctx context.Context, username string) ([]ledger.CategoryTotal, error) {
	if s.spendingFn == nil {
		return nil, nil
	}
	return s.spendingFn(ctx, username)
}

func (s stubService) SetAvatar(ctx context.Context, username, ref string) error {
	if s.avatarFn == nil {
		return nil
	}
	return s.avatarFn(ctx, username, ref)
}

func (s stubService) SelfCheck(ctx context.Context, username string) (ledger.Reconciliation, error) {
	if s.selfCheckFn == nil {
		return ledger.Reconciliation{}, nil
	}
	return s.selfCheckFn(ctx, username)
}

func (s stubService) Activity(ctx context.Context, username string, limit, offset int) ([]store.AuditEntry, error) {
	if s.activityFn == nil {
		return nil, nil
	}
	return s.activityFn(ctx, username, limit, offset)
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		MaxAvatarBytes: 1024,
	}
}

func newTestHandler(service WalletService) *Handler {
	return New(testConfig(), service, websocket.NewHub())
}

// serve routes the request through the full router, authenticated as
// username unless it is empty.
func serve(t *testing.T, handler *Handler, method, path, username string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		token, err := auth.GenerateToken("secret", username, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", rr.Body.String(), err)
	}
	return payload
}
