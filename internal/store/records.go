package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/comtrace/comtrace/internal/model"
)

// Provenance records are minted only inside RecordTrade; this file holds the
// administrator-mediated lifecycle operations and the lookup queries.

// getRecordTx loads a provenance record inside a transaction.
func getRecordTx(ctx context.Context, q queryer, id int64) (*model.Record, error) {
	r := &model.Record{}
	var metadata sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, trade_id, holder_id, status, metadata, minted_at, retired_at
		 FROM provenance_records WHERE id = ?`, id,
	).Scan(&r.ID, &r.TradeID, &r.HolderID, &r.Status, &metadata, &r.MintedAt, &r.RetiredAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	r.Metadata = metadata.String
	return r, nil
}

// requireAdminRecord loads the record and checks admin capability plus that
// the record is not retired. All record mutations share these preconditions.
func requireAdminRecord(ctx context.Context, q queryer, actorID, id int64) (*model.Record, error) {
	actorRole, err := accountRole(ctx, q, actorID)
	if err != nil {
		return nil, err
	}
	if !model.RoleAtLeast(actorRole, model.RoleAdmin) {
		return nil, fmt.Errorf("%w: admin capability required", ErrPermissionDenied)
	}

	r, err := getRecordTx(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if r.RetiredAt != nil {
		return nil, fmt.Errorf("%w: record is retired", ErrInvalidState)
	}
	return r, nil
}

// UpdateRecordMetadata replaces the descriptive reference of a record and
// returns the previous value for audit purposes. Administrator-only.
func UpdateRecordMetadata(ctx context.Context, db *sql.DB, actorID, id int64, metadata string) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := requireAdminRecord(ctx, tx, actorID, id)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE provenance_records SET metadata = ? WHERE id = ?`, metadata, id,
	); err != nil {
		return "", fmt.Errorf("updating record metadata: %w", err)
	}

	if err := appendAudit(ctx, tx, "record", id, "record.metadata", actorID,
		map[string]string{"metadata": r.Metadata}, map[string]string{"metadata": metadata}); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing metadata update: %w", err)
	}
	return r.Metadata, nil
}

// SetRecordStatus overwrites a record's status. Administrators may move a
// record between any two statuses; there is no terminal state short of
// retirement.
func SetRecordStatus(ctx context.Context, db *sql.DB, actorID, id int64, status string) error {
	if !model.ValidRecordStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := requireAdminRecord(ctx, tx, actorID, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE provenance_records SET status = ? WHERE id = ?`, status, id,
	); err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}

	if err := appendAudit(ctx, tx, "record", id, "record.status", actorID,
		map[string]string{"status": r.Status}, map[string]string{"status": status}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing record status: %w", err)
	}
	return nil
}

// TransferCustody moves a record to a new holder. Custody transfer is
// administrator-mediated: holders cannot move records on their own, because a
// provenance record is audited trade evidence, not a freely tradable asset.
func TransferCustody(ctx context.Context, db *sql.DB, actorID, id, toID int64) error {
	if toID == 0 {
		return fmt.Errorf("%w: null target identity", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := requireAdminRecord(ctx, tx, actorID, id)
	if err != nil {
		return err
	}

	if _, err := accountRole(ctx, tx, toID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE provenance_records SET holder_id = ? WHERE id = ?`, toID, id,
	); err != nil {
		return fmt.Errorf("transferring record custody: %w", err)
	}

	if err := appendAudit(ctx, tx, "record", id, "record.transfer", actorID,
		map[string]int64{"holder_id": r.HolderID}, map[string]int64{"holder_id": toID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing custody transfer: %w", err)
	}
	return nil
}

// RetireRecord burns a record: it is marked revoked and permanently removed
// from holder lookups. The row itself is kept so the trade binding and audit
// trail survive.
func RetireRecord(ctx context.Context, db *sql.DB, actorID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := requireAdminRecord(ctx, tx, actorID, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE provenance_records SET status = ?, retired_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.RecordStatusRevoked, id,
	); err != nil {
		return fmt.Errorf("retiring record: %w", err)
	}

	if err := appendAudit(ctx, tx, "record", id, "record.retire", actorID,
		map[string]string{"status": r.Status}, map[string]string{"status": model.RecordStatusRevoked}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing retirement: %w", err)
	}
	return nil
}

// GetRecord returns a record by ID with the holder name joined.
func GetRecord(ctx context.Context, db *sql.DB, id int64) (*model.Record, error) {
	r := &model.Record{}
	var metadata sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT r.id, r.trade_id, r.holder_id, r.status, r.metadata, r.minted_at, r.retired_at,
		        a.username AS holder_name
		 FROM provenance_records r
		 JOIN accounts a ON a.id = r.holder_id
		 WHERE r.id = ?`, id,
	).Scan(&r.ID, &r.TradeID, &r.HolderID, &r.Status, &metadata, &r.MintedAt, &r.RetiredAt, &r.HolderName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	r.Metadata = metadata.String
	return r, nil
}

// GetRecordByTrade returns the record bound to a trade, or nil if none has
// been minted. At most one exists.
func GetRecordByTrade(ctx context.Context, db *sql.DB, tradeID int64) (*model.Record, error) {
	r := &model.Record{}
	var metadata sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT r.id, r.trade_id, r.holder_id, r.status, r.metadata, r.minted_at, r.retired_at,
		        a.username AS holder_name
		 FROM provenance_records r
		 JOIN accounts a ON a.id = r.holder_id
		 WHERE r.trade_id = ?`, tradeID,
	).Scan(&r.ID, &r.TradeID, &r.HolderID, &r.Status, &metadata, &r.MintedAt, &r.RetiredAt, &r.HolderName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting record by trade: %w", err)
	}
	r.Metadata = metadata.String
	return r, nil
}

// ListRecordsByHolder returns the holder's records. Retired records are
// excluded: burning removes a record from holder lookup permanently.
func ListRecordsByHolder(ctx context.Context, db *sql.DB, holderID int64) ([]model.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT r.id, r.trade_id, r.holder_id, r.status, r.metadata, r.minted_at, r.retired_at,
		        a.username AS holder_name
		 FROM provenance_records r
		 JOIN accounts a ON a.id = r.holder_id
		 WHERE r.holder_id = ? AND r.retired_at IS NULL
		 ORDER BY r.id`, holderID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing records by holder: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		var metadata sql.NullString
		if err := rows.Scan(&r.ID, &r.TradeID, &r.HolderID, &r.Status, &metadata, &r.MintedAt, &r.RetiredAt, &r.HolderName); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Metadata = metadata.String
		records = append(records, r)
	}
	return records, rows.Err()
}
