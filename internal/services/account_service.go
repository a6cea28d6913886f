package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"wallet/internal/auth"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/store"
	"wallet/internal/validator"

	"github.com/jmoiron/sqlx"
)

// Signup creates an empty account. The username is case-sensitive and
// trimmed of surrounding whitespace.
func (s *WalletService) Signup(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if err := validator.ValidateUsername(username); err != nil {
		return models.Account{}, err
	}
	if err := validator.ValidatePassword(password); err != nil {
		return models.Account{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Account{}, err
	}
	account := models.Account{
		Username:     username,
		PasswordHash: hash,
		Transactions: []models.Transaction{},
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		exists, err := s.accounts.Exists(ctx, tx, username)
		if err != nil {
			return err
		}
		if exists {
			return ErrUsernameTaken
		}
		if err := s.accounts.Put(ctx, tx, account); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, username, ActionSignup, "account", username, "{}")
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// Authenticate checks the credentials. Accounts that still carry a plaintext
// password are moved to a bcrypt hash on their first successful login.
func (s *WalletService) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Account{}, ErrInvalidCredentials
	}
	var account models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		loaded, err := s.load(ctx, tx, username)
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if loaded.PasswordHash != "" {
			if !auth.CheckPassword(loaded.PasswordHash, password) {
				return ErrInvalidCredentials
			}
			account = loaded
			return nil
		}
		if loaded.LegacyPassword == "" || subtle.ConstantTimeCompare([]byte(loaded.LegacyPassword), []byte(password)) != 1 {
			return ErrInvalidCredentials
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		loaded.PasswordHash = hash
		loaded.LegacyPassword = ""
		if err := s.accounts.Put(ctx, tx, loaded); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, username, ActionPasswordUpgrade, "account", username, "{}"); err != nil {
			return err
		}
		account = loaded
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

type ImportResult struct {
	Imported []string
	Skipped  []string
}

// Import stores accounts read from a legacy export. Existing usernames are
// skipped unless overwrite is set. Plaintext passwords are hashed on the way
// in.
func (s *WalletService) Import(ctx context.Context, accounts []models.Account, overwrite bool) (ImportResult, error) {
	var result ImportResult
	var imported []models.Account
	prepared := make([]models.Account, 0, len(accounts))
	for _, account := range accounts {
		if err := validator.ValidateUsername(account.Username); err != nil {
			return ImportResult{}, fmt.Errorf("import %q: %w", account.Username, err)
		}
		if account.PasswordHash == "" && account.LegacyPassword != "" {
			hash, err := auth.HashPassword(account.LegacyPassword)
			if err != nil {
				return ImportResult{}, fmt.Errorf("import %q: %w", account.Username, err)
			}
			account.PasswordHash = hash
			account.LegacyPassword = ""
		}
		prepared = append(prepared, account)
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = ImportResult{}
		imported = imported[:0]
		for _, account := range prepared {
			exists, err := s.accounts.Exists(ctx, tx, account.Username)
			if err != nil {
				return err
			}
			if exists && !overwrite {
				result.Skipped = append(result.Skipped, account.Username)
				continue
			}
			if err := s.accounts.Put(ctx, tx, account); err != nil {
				return err
			}
			data, err := auditData(map[string]any{
				"balance":      money.FormatMinor(account.Balance),
				"transactions": len(account.Transactions),
				"overwrite":    exists,
			})
			if err != nil {
				return err
			}
			if err := s.audit.Log(ctx, tx, account.Username, ActionImport, "account", account.Username, data); err != nil {
				return err
			}
			result.Imported = append(result.Imported, account.Username)
			imported = append(imported, account)
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	for _, account := range imported {
		s.broadcast(account, ActionImport)
	}
	return result, nil
}

var _ AccountStore = (*store.AccountStore)(nil)
var _ AuditStore = (*store.AuditStore)(nil)
