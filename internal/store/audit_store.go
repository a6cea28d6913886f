package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AuditStore struct {
	db DB
}

type AuditEntry struct {
	ID         string `db:"id"`
	Actor      string `db:"actor"`
	Action     string `db:"action"`
	EntityType string `db:"entity_type"`
	EntityID   string `db:"entity_id"`
	Data       string `db:"data"`
	CreatedAt  any    `db:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, tx Execer, actor, action, entityType, entityID, data string) error {
	if data == "" {
		data = "{}"
	}
	_, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), uuid.NewString(), actor, action, entityType, entityID, data, time.Now().UTC())
	return err
}

// List returns the actor's most recent entries first.
func (s *AuditStore) List(ctx context.Context, actor string, limit, offset int) ([]AuditEntry, error) {
	var rows []AuditEntry
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, actor, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		WHERE actor = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`), actor, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
