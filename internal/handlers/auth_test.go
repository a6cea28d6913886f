package handlers

import (
	"context"
	"net/http"
	"testing"

	"wallet/internal/auth"
	"wallet/internal/models"
	"wallet/internal/services"
	"wallet/internal/validator"
)

func TestSignupSuccess(t *testing.T) {
	handler := newTestHandler(stubService{
		signupFn: func(_ context.Context, username, password string) (models.Account, error) {
			if username != "alice" || password != "secret" {
				t.Fatalf("unexpected credentials: %s %s", username, password)
			}
			return models.Account{Username: "alice"}, nil
		},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{"username": "alice", "password": "secret"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	claims, err := auth.ParseToken("secret", payload["token"].(string))
	if err != nil || claims.Username != "alice" {
		t.Fatalf("unexpected token: %v %#v", err, claims)
	}
}

func TestSignupErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUsernameTaken, http.StatusConflict, "username_taken"},
		{validator.ErrInvalidUsername, http.StatusBadRequest, "invalid_username"},
		{validator.ErrInvalidPassword, http.StatusBadRequest, "invalid_password"},
	}
	for _, tc := range cases {
		handler := newTestHandler(stubService{
			signupFn: func(context.Context, string, string) (models.Account, error) {
				return models.Account{}, tc.err
			},
		})
		rr := serve(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{"username": "alice", "password": "x"})
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		if code := decodeBody(t, rr)["error"]; code != tc.code {
			t.Fatalf("%v: unexpected code %v", tc.err, code)
		}
	}
}

func TestSignupInvalidPayload(t *testing.T) {
	handler := newTestHandler(stubService{
		signupFn: func(context.Context, string, string) (models.Account, error) {
			t.Fatalf("unexpected service call")
			return models.Account{}, nil
		},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/signup", "", "{")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler := newTestHandler(stubService{
		authenticateFn: func(context.Context, string, string) (models.Account, error) {
			return models.Account{}, services.ErrInvalidCredentials
		},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLoginSuccess(t *testing.T) {
	handler := newTestHandler(stubService{})
	rr := serve(t, handler, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "pw"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if decodeBody(t, rr)["username"] != "alice" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestMeRequiresToken(t *testing.T) {
	handler := newTestHandler(stubService{})
	rr := serve(t, handler, http.MethodGet, "/auth/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMeRejectsDeletedAccount(t *testing.T) {
	handler := newTestHandler(stubService{
		existsFn: func(context.Context, string) (bool, error) { return false, nil },
	})
	rr := serve(t, handler, http.MethodGet, "/auth/me", "alice", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMe(t *testing.T) {
	handler := newTestHandler(stubService{
		walletFn: func(_ context.Context, username string) (services.WalletSummary, error) {
			return services.WalletSummary{Account: models.Account{Username: username, BalanceSet: true}}, nil
		},
	})
	rr := serve(t, handler, http.MethodGet, "/auth/me", "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["username"] != "alice" || payload["balance_set"] != true {
		t.Fatalf("unexpected body: %#v", payload)
	}
}
