package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/comtrace/comtrace/internal/model"
)

// queryer is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// helpers can run both standalone and inside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// appendAudit writes one append-only audit event. Old and new values are
// JSON-encoded; nil values are stored as NULL. actorID 0 means the system
// itself acted (bootstrap).
func appendAudit(ctx context.Context, q queryer, entity string, entityID int64, action string, actorID int64, oldValue, newValue any) error {
	encode := func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}

	oldJSON, err := encode(oldValue)
	if err != nil {
		return fmt.Errorf("encoding audit old value: %w", err)
	}
	newJSON, err := encode(newValue)
	if err != nil {
		return fmt.Errorf("encoding audit new value: %w", err)
	}

	var actor any
	if actorID != 0 {
		actor = actorID
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO audit_events (id, entity, entity_id, action, actor_id, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), entity, entityID, action, actor, oldJSON, newJSON,
	)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns audit events, newest first, optionally filtered by
// entity kind and id. limit <= 0 means no limit.
func ListAuditEvents(ctx context.Context, db *sql.DB, entity string, entityID int64, limit int) ([]model.AuditEvent, error) {
	query := `SELECT id, entity, entity_id, action, actor_id, old_value, new_value, created_at
	          FROM audit_events WHERE 1=1`
	var args []any

	if entity != "" {
		query += ` AND entity = ?`
		args = append(args, entity)
	}
	if entityID > 0 {
		query += ` AND entity_id = ?`
		args = append(args, entityID)
	}

	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var oldVal, newVal sql.NullString
		if err := rows.Scan(&e.ID, &e.Entity, &e.EntityID, &e.Action, &e.ActorID, &oldVal, &newVal, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.OldValue = oldVal.String
		e.NewValue = newVal.String
		events = append(events, e)
	}
	return events, rows.Err()
}
