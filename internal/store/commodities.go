package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/model"
)

// getCommodityTx loads a commodity inside a transaction.
func getCommodityTx(ctx context.Context, q queryer, id int64) (*model.Commodity, error) {
	c := &model.Commodity{}
	var category, misc, stage, location, imageMime sql.NullString
	var unitPrice string
	err := q.QueryRowContext(ctx,
		`SELECT id, listing_id, owner_id, title, category, misc, total_quantity, remaining_quantity,
		        unit_price, status, stage, location, image_mime, created_at
		 FROM commodities WHERE id = ?`, id,
	).Scan(&c.ID, &c.ListingID, &c.OwnerID, &c.Title, &category, &misc, &c.TotalQuantity, &c.RemainingQuantity,
		&unitPrice, &c.Status, &stage, &location, &imageMime, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("commodity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting commodity: %w", err)
	}
	c.Category = category.String
	c.Misc = misc.String
	c.Stage = stage.String
	c.Location = location.String
	c.ImageMime = imageMime.String
	c.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing commodity price: %w", err)
	}
	return c, nil
}

// authorizeCommodity checks that the actor is the owning seller or holds
// admin capability.
func authorizeCommodity(ctx context.Context, q queryer, actorID int64, c *model.Commodity) error {
	if actorID == c.OwnerID {
		return nil
	}
	role, err := accountRole(ctx, q, actorID)
	if err != nil {
		return err
	}
	if !model.RoleAtLeast(role, model.RoleAdmin) {
		return fmt.Errorf("%w: owner or admin capability required", ErrPermissionDenied)
	}
	return nil
}

// UpdateStage overwrites the commodity's provenance text (stage, location and
// misc). The commodity must be active; quantity and status are untouched.
func UpdateStage(ctx context.Context, db *sql.DB, actorID, id int64, stage, location, misc string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := getCommodityTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := authorizeCommodity(ctx, tx, actorID, c); err != nil {
		return err
	}
	if c.Status != model.CommodityStatusActive {
		return fmt.Errorf("%w: commodity is %s", ErrInvalidState, c.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commodities SET stage = ?, location = ?, misc = ? WHERE id = ?`,
		stage, location, misc, id,
	); err != nil {
		return fmt.Errorf("updating commodity stage: %w", err)
	}

	if err := appendAudit(ctx, tx, "commodity", id, "commodity.stage", actorID,
		map[string]string{"stage": c.Stage, "location": c.Location, "misc": c.Misc},
		map[string]string{"stage": stage, "location": location, "misc": misc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stage update: %w", err)
	}
	return nil
}

// SetCommodityStatus unconditionally overwrites the status. Any status is
// reachable from any status by an authorized caller; there is no transition
// table here, by contrast with listings.
func SetCommodityStatus(ctx context.Context, db *sql.DB, actorID, id int64, status string) error {
	if !model.ValidCommodityStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := getCommodityTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := authorizeCommodity(ctx, tx, actorID, c); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commodities SET status = ? WHERE id = ?`, status, id,
	); err != nil {
		return fmt.Errorf("updating commodity status: %w", err)
	}

	if err := appendAudit(ctx, tx, "commodity", id, "commodity.status", actorID,
		map[string]string{"status": c.Status}, map[string]string{"status": status}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status update: %w", err)
	}
	return nil
}

// UpdateCommodityDetails overwrites the descriptive fields and the current
// unit price. Quantities are never touched here, and price edits do not
// affect already-recorded trades.
func UpdateCommodityDetails(ctx context.Context, db *sql.DB, actorID, id int64, title, category string, unitPrice decimal.Decimal, misc string) error {
	if title == "" {
		return fmt.Errorf("%w: title required", ErrInvalidArgument)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price cannot be negative", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := getCommodityTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := authorizeCommodity(ctx, tx, actorID, c); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commodities SET title = ?, category = ?, unit_price = ?, misc = ? WHERE id = ?`,
		title, category, unitPrice.String(), misc, id,
	); err != nil {
		return fmt.Errorf("updating commodity details: %w", err)
	}

	if err := appendAudit(ctx, tx, "commodity", id, "commodity.details", actorID,
		map[string]string{"title": c.Title, "category": c.Category, "unit_price": c.UnitPrice.String(), "misc": c.Misc},
		map[string]string{"title": title, "category": category, "unit_price": unitPrice.String(), "misc": misc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing details update: %w", err)
	}
	return nil
}

// AdjustRemaining sets the remaining quantity directly, bounded by
// [0, total]. Reaching zero forces the soldout status. This administrative
// override is a distinct path from trade-driven consumption and may also
// increase the remaining quantity.
func AdjustRemaining(ctx context.Context, db *sql.DB, actorID, id, newRemaining int64) error {
	if newRemaining < 0 {
		return fmt.Errorf("%w: remaining quantity cannot be negative", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := getCommodityTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := authorizeCommodity(ctx, tx, actorID, c); err != nil {
		return err
	}
	if newRemaining > c.TotalQuantity {
		return fmt.Errorf("%w: remaining %d exceeds total %d", ErrInvalidArgument, newRemaining, c.TotalQuantity)
	}

	status := c.Status
	if newRemaining == 0 {
		status = model.CommodityStatusSoldOut
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commodities SET remaining_quantity = ?, status = ? WHERE id = ?`,
		newRemaining, status, id,
	); err != nil {
		return fmt.Errorf("adjusting remaining quantity: %w", err)
	}

	if err := appendAudit(ctx, tx, "commodity", id, "commodity.adjust", actorID,
		map[string]any{"remaining_quantity": c.RemainingQuantity, "status": c.Status},
		map[string]any{"remaining_quantity": newRemaining, "status": status}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing adjustment: %w", err)
	}
	return nil
}

// SetCommodityImage stores a processed photo for the commodity.
func SetCommodityImage(ctx context.Context, db *sql.DB, actorID, id int64, image []byte, mime string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := getCommodityTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := authorizeCommodity(ctx, tx, actorID, c); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE commodities SET image = ?, image_mime = ? WHERE id = ?`,
		image, mime, id,
	); err != nil {
		return fmt.Errorf("setting commodity image: %w", err)
	}

	if err := appendAudit(ctx, tx, "commodity", id, "commodity.image", actorID,
		map[string]string{"image_mime": c.ImageMime}, map[string]string{"image_mime": mime}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing image update: %w", err)
	}
	return nil
}

// GetCommodityImage returns a commodity's photo data and MIME type.
func GetCommodityImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM commodities WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting commodity image: %w", err)
	}
	return image, mime.String, nil
}

// GetCommodity returns a commodity by ID with the owner name joined.
func GetCommodity(ctx context.Context, db *sql.DB, id int64) (*model.Commodity, error) {
	c := &model.Commodity{}
	var category, misc, stage, location, imageMime sql.NullString
	var unitPrice string
	err := db.QueryRowContext(ctx,
		`SELECT c.id, c.listing_id, c.owner_id, c.title, c.category, c.misc, c.total_quantity,
		        c.remaining_quantity, c.unit_price, c.status, c.stage, c.location, c.image_mime,
		        c.created_at, a.username AS owner_name
		 FROM commodities c
		 JOIN accounts a ON a.id = c.owner_id
		 WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.ListingID, &c.OwnerID, &c.Title, &category, &misc, &c.TotalQuantity,
		&c.RemainingQuantity, &unitPrice, &c.Status, &stage, &location, &imageMime,
		&c.CreatedAt, &c.OwnerName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting commodity: %w", err)
	}
	c.Category = category.String
	c.Misc = misc.String
	c.Stage = stage.String
	c.Location = location.String
	c.ImageMime = imageMime.String
	c.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing commodity price: %w", err)
	}
	return c, nil
}

// ListCommodities returns commodities, optionally filtered by owner or status.
func ListCommodities(ctx context.Context, db *sql.DB, ownerID int64, status string) ([]model.Commodity, error) {
	query := `SELECT c.id, c.listing_id, c.owner_id, c.title, c.category, c.misc, c.total_quantity,
	                 c.remaining_quantity, c.unit_price, c.status, c.stage, c.location, c.image_mime,
	                 c.created_at, a.username AS owner_name
	          FROM commodities c
	          JOIN accounts a ON a.id = c.owner_id
	          WHERE 1=1`
	var args []any

	if ownerID > 0 {
		query += ` AND c.owner_id = ?`
		args = append(args, ownerID)
	}
	if status != "" {
		query += ` AND c.status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY c.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing commodities: %w", err)
	}
	defer rows.Close()

	var commodities []model.Commodity
	for rows.Next() {
		var c model.Commodity
		var category, misc, stage, location, imageMime sql.NullString
		var unitPrice string
		if err := rows.Scan(&c.ID, &c.ListingID, &c.OwnerID, &c.Title, &category, &misc, &c.TotalQuantity,
			&c.RemainingQuantity, &unitPrice, &c.Status, &stage, &location, &imageMime,
			&c.CreatedAt, &c.OwnerName); err != nil {
			return nil, fmt.Errorf("scanning commodity: %w", err)
		}
		c.Category = category.String
		c.Misc = misc.String
		c.Stage = stage.String
		c.Location = location.String
		c.ImageMime = imageMime.String
		c.UnitPrice, err = decimal.NewFromString(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("parsing commodity price: %w", err)
		}
		commodities = append(commodities, c)
	}
	return commodities, rows.Err()
}
