package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// KVStore keeps whole JSON values under string keys. Every write replaces the
// previous value; the last writer wins.
type KVStore struct {
	db DB
}

func NewKVStore(db DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Get(ctx context.Context, q Getter, key string) ([]byte, error) {
	var value string
	err := q.GetContext(ctx, &value, s.db.Rebind(`
		SELECT value
		FROM wallet_records
		WHERE record_key = ?
	`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *KVStore) Put(ctx context.Context, tx Execer, key string, value []byte) error {
	_, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO wallet_records (record_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (record_key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at
	`), key, string(value), time.Now().UTC())
	return err
}

func (s *KVStore) Delete(ctx context.Context, tx Execer, key string) error {
	_, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM wallet_records WHERE record_key = ?`), key)
	return err
}

// Keys lists keys starting with prefix in lexical order. The prefix is
// matched literally.
func (s *KVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys, s.db.Rebind(`
		SELECT record_key
		FROM wallet_records
		WHERE substr(record_key, 1, ?) = ?
		ORDER BY record_key
	`), len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	return keys, nil
}
