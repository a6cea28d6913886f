package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"wallet/internal/models"
)

const (
	accountKeyPrefix = "user:"
	sessionKey       = "loggedInUser"
)

// AccountStore is the username-keyed repository of whole account records.
type AccountStore struct {
	kv *KVStore
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{kv: NewKVStore(db)}
}

func accountKey(username string) string {
	return accountKeyPrefix + username
}

func (s *AccountStore) Get(ctx context.Context, q Getter, username string) (models.Account, error) {
	data, err := s.kv.Get(ctx, q, accountKey(username))
	if err != nil {
		return models.Account{}, err
	}
	return UnmarshalAccount(username, data)
}

func (s *AccountStore) Put(ctx context.Context, tx Execer, account models.Account) error {
	data, err := MarshalAccount(account)
	if err != nil {
		return fmt.Errorf("encode account %q: %w", account.Username, err)
	}
	return s.kv.Put(ctx, tx, accountKey(account.Username), data)
}

func (s *AccountStore) Exists(ctx context.Context, q Getter, username string) (bool, error) {
	_, err := s.kv.Get(ctx, q, accountKey(username))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AccountStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, accountKeyPrefix)
	if err != nil {
		return nil, err
	}
	usernames := make([]string, 0, len(keys))
	for _, key := range keys {
		usernames = append(usernames, strings.TrimPrefix(key, accountKeyPrefix))
	}
	return usernames, nil
}

// SessionStore holds the pointer to the currently signed-in username, read
// on startup to resume a session.
type SessionStore struct {
	db DB
	kv *KVStore
}

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db, kv: NewKVStore(db)}
}

// Current returns "" when nobody is signed in.
func (s *SessionStore) Current(ctx context.Context) (string, error) {
	data, err := s.kv.Get(ctx, s.db, sessionKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var username string
	if err := json.Unmarshal(data, &username); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return username, nil
}

func (s *SessionStore) Set(ctx context.Context, username string) error {
	data, err := json.Marshal(username)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, s.db, sessionKey, data)
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, s.db, sessionKey)
}

// LegacyExport is a dump of the browser storage the wallet used to live in.
type LegacyExport struct {
	Accounts     []models.Account
	LoggedInUser string
}

// DecodeLegacyExport reads {"walletUsers": ..., "loggedInUser": ...}. The
// walletUsers value may be the users object itself or that object encoded as
// a JSON string, which is how browser storage holds it.
func DecodeLegacyExport(r io.Reader) (LegacyExport, error) {
	var raw struct {
		WalletUsers  json.RawMessage `json:"walletUsers"`
		LoggedInUser string          `json:"loggedInUser"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return LegacyExport{}, fmt.Errorf("decode export: %w", err)
	}
	usersJSON := []byte(raw.WalletUsers)
	if len(usersJSON) > 0 && usersJSON[0] == '"' {
		var encoded string
		if err := json.Unmarshal(usersJSON, &encoded); err != nil {
			return LegacyExport{}, fmt.Errorf("decode walletUsers: %w", err)
		}
		usersJSON = []byte(encoded)
	}
	users := map[string]json.RawMessage{}
	if len(usersJSON) > 0 && string(usersJSON) != "null" {
		if err := json.Unmarshal(usersJSON, &users); err != nil {
			return LegacyExport{}, fmt.Errorf("decode walletUsers: %w", err)
		}
	}
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	export := LegacyExport{LoggedInUser: raw.LoggedInUser}
	for _, name := range names {
		account, err := UnmarshalAccount(name, users[name])
		if err != nil {
			return LegacyExport{}, err
		}
		export.Accounts = append(export.Accounts, account)
	}
	return export, nil
}
