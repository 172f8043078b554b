package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/model"
)

// getListingTx loads a listing inside a transaction.
func getListingTx(ctx context.Context, q queryer, id int64) (*model.Listing, error) {
	l := &model.Listing{}
	var category, description, remark sql.NullString
	var unitPrice string
	err := q.QueryRowContext(ctx,
		`SELECT id, proposer_id, title, category, description, quantity, unit_price, status, remark, created_at
		 FROM listings WHERE id = ?`, id,
	).Scan(&l.ID, &l.ProposerID, &l.Title, &category, &description, &l.Quantity, &unitPrice, &l.Status, &remark, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	l.Category = category.String
	l.Description = description.String
	l.Remark = remark.String
	l.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing listing price: %w", err)
	}
	return l, nil
}

// validateListingFields checks the fields shared by create and edit.
func validateListingFields(title string, quantity int64, unitPrice decimal.Decimal) error {
	if title == "" {
		return fmt.Errorf("%w: title required", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price cannot be negative", ErrInvalidArgument)
	}
	return nil
}

// CreateListing creates a pending listing proposed by a seller.
func CreateListing(ctx context.Context, db *sql.DB, proposerID int64, title, category, description string, quantity int64, unitPrice decimal.Decimal) (*model.Listing, error) {
	if err := validateListingFields(title, quantity, unitPrice); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	role, err := accountRole(ctx, tx, proposerID)
	if err != nil {
		return nil, err
	}
	if !model.RoleAtLeast(role, model.RoleSeller) {
		return nil, fmt.Errorf("%w: seller capability required", ErrPermissionDenied)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO listings (proposer_id, title, category, description, quantity, unit_price)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		proposerID, title, category, description, quantity, unitPrice.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting listing id: %w", err)
	}

	if err := appendAudit(ctx, tx, "listing", id, "listing.create", proposerID, nil,
		map[string]any{"title": title, "quantity": quantity, "unit_price": unitPrice.String(), "status": model.ListingStatusPending}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing listing: %w", err)
	}

	return GetListing(ctx, db, id)
}

// UpdateListing edits a pending listing. Only the original proposer may edit,
// and only while the listing is pending.
func UpdateListing(ctx context.Context, db *sql.DB, actorID, id int64, title, category, description string, quantity int64, unitPrice decimal.Decimal) (*model.Listing, error) {
	if err := validateListingFields(title, quantity, unitPrice); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getListingTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l.ProposerID != actorID {
		return nil, fmt.Errorf("%w: only the proposer may edit a listing", ErrPermissionDenied)
	}
	if l.Status != model.ListingStatusPending {
		return nil, fmt.Errorf("%w: listing is %s", ErrInvalidState, l.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET title = ?, category = ?, description = ?, quantity = ?, unit_price = ?
		 WHERE id = ?`,
		title, category, description, quantity, unitPrice.String(), id,
	); err != nil {
		return nil, fmt.Errorf("updating listing: %w", err)
	}

	if err := appendAudit(ctx, tx, "listing", id, "listing.update", actorID,
		map[string]any{"title": l.Title, "quantity": l.Quantity, "unit_price": l.UnitPrice.String()},
		map[string]any{"title": title, "quantity": quantity, "unit_price": unitPrice.String()}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing listing update: %w", err)
	}

	return GetListing(ctx, db, id)
}

// CancelListing moves a pending listing to the terminal cancelled status.
// Only the proposer may cancel.
func CancelListing(ctx context.Context, db *sql.DB, actorID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getListingTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if l.ProposerID != actorID {
		return fmt.Errorf("%w: only the proposer may cancel a listing", ErrPermissionDenied)
	}
	if l.Status != model.ListingStatusPending {
		return fmt.Errorf("%w: listing is %s", ErrInvalidState, l.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ? WHERE id = ?`, model.ListingStatusCancelled, id,
	); err != nil {
		return fmt.Errorf("cancelling listing: %w", err)
	}

	if err := appendAudit(ctx, tx, "listing", id, "listing.cancel", actorID,
		map[string]string{"status": l.Status}, map[string]string{"status": model.ListingStatusCancelled}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cancel: %w", err)
	}
	return nil
}

// ApproveListing moves a pending listing to approved and atomically creates
// the commodity seeded from it. If commodity creation fails, the approval is
// rolled back with it.
func ApproveListing(ctx context.Context, db *sql.DB, actorID, id int64, note string) (*model.Commodity, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if !model.RoleAtLeast(actorRole, model.RoleAdmin) {
		return nil, fmt.Errorf("%w: admin capability required", ErrPermissionDenied)
	}

	l, err := getListingTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingStatusPending {
		return nil, fmt.Errorf("%w: listing is %s", ErrInvalidState, l.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ?, remark = ? WHERE id = ?`,
		model.ListingStatusApproved, note, id,
	); err != nil {
		return nil, fmt.Errorf("approving listing: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO commodities (listing_id, owner_id, title, category, misc, total_quantity, remaining_quantity, unit_price, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ProposerID, l.Title, l.Category, l.Description, l.Quantity, l.Quantity, l.UnitPrice.String(), model.CommodityStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("creating commodity: %w", err)
	}
	commodityID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting commodity id: %w", err)
	}

	if err := appendAudit(ctx, tx, "listing", id, "listing.approve", actorID,
		map[string]string{"status": l.Status}, map[string]any{"status": model.ListingStatusApproved, "commodity_id": commodityID}); err != nil {
		return nil, err
	}
	if err := appendAudit(ctx, tx, "commodity", commodityID, "commodity.create", actorID, nil,
		map[string]any{"listing_id": l.ID, "owner_id": l.ProposerID, "total_quantity": l.Quantity, "unit_price": l.UnitPrice.String(), "status": model.CommodityStatusActive}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing approval: %w", err)
	}

	return GetCommodity(ctx, db, commodityID)
}

// RejectListing moves a pending listing to the terminal rejected status,
// storing the reason as the admin remark.
func RejectListing(ctx context.Context, db *sql.DB, actorID, id int64, reason string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return err
	}
	if !model.RoleAtLeast(actorRole, model.RoleAdmin) {
		return fmt.Errorf("%w: admin capability required", ErrPermissionDenied)
	}

	l, err := getListingTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if l.Status != model.ListingStatusPending {
		return fmt.Errorf("%w: listing is %s", ErrInvalidState, l.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ?, remark = ? WHERE id = ?`,
		model.ListingStatusRejected, reason, id,
	); err != nil {
		return fmt.Errorf("rejecting listing: %w", err)
	}

	if err := appendAudit(ctx, tx, "listing", id, "listing.reject", actorID,
		map[string]string{"status": l.Status}, map[string]string{"status": model.ListingStatusRejected, "remark": reason}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rejection: %w", err)
	}
	return nil
}

// AnnotateListing updates the admin remark. Unlike the status transitions
// this is allowed in any listing status; it is an audit note, not a
// state change.
func AnnotateListing(ctx context.Context, db *sql.DB, actorID, id int64, note string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return err
	}
	if !model.RoleAtLeast(actorRole, model.RoleAdmin) {
		return fmt.Errorf("%w: admin capability required", ErrPermissionDenied)
	}

	l, err := getListingTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET remark = ? WHERE id = ?`, note, id,
	); err != nil {
		return fmt.Errorf("annotating listing: %w", err)
	}

	if err := appendAudit(ctx, tx, "listing", id, "listing.annotate", actorID,
		map[string]string{"remark": l.Remark}, map[string]string{"remark": note}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing annotation: %w", err)
	}
	return nil
}

// GetListing returns a listing by ID with the proposer name joined.
func GetListing(ctx context.Context, db *sql.DB, id int64) (*model.Listing, error) {
	l := &model.Listing{}
	var category, description, remark sql.NullString
	var unitPrice string
	err := db.QueryRowContext(ctx,
		`SELECT l.id, l.proposer_id, l.title, l.category, l.description, l.quantity, l.unit_price,
		        l.status, l.remark, l.created_at, a.username AS proposer_name
		 FROM listings l
		 JOIN accounts a ON a.id = l.proposer_id
		 WHERE l.id = ?`, id,
	).Scan(&l.ID, &l.ProposerID, &l.Title, &category, &description, &l.Quantity, &unitPrice,
		&l.Status, &remark, &l.CreatedAt, &l.ProposerName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	l.Category = category.String
	l.Description = description.String
	l.Remark = remark.String
	l.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing listing price: %w", err)
	}
	return l, nil
}

// ListListings returns listings, optionally filtered by proposer or status.
func ListListings(ctx context.Context, db *sql.DB, proposerID int64, status string) ([]model.Listing, error) {
	query := `SELECT l.id, l.proposer_id, l.title, l.category, l.description, l.quantity, l.unit_price,
	                 l.status, l.remark, l.created_at, a.username AS proposer_name
	          FROM listings l
	          JOIN accounts a ON a.id = l.proposer_id
	          WHERE 1=1`
	var args []any

	if proposerID > 0 {
		query += ` AND l.proposer_id = ?`
		args = append(args, proposerID)
	}
	if status != "" {
		query += ` AND l.status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY l.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		var category, description, remark sql.NullString
		var unitPrice string
		if err := rows.Scan(&l.ID, &l.ProposerID, &l.Title, &category, &description, &l.Quantity, &unitPrice,
			&l.Status, &remark, &l.CreatedAt, &l.ProposerName); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		l.Category = category.String
		l.Description = description.String
		l.Remark = remark.String
		l.UnitPrice, err = decimal.NewFromString(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("parsing listing price: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
