package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/model"
)

// RecordTrade consumes commodity quantity and creates an immutable trade
// record in a single transaction. The seller and unit price are snapshotted
// from the commodity at this instant, the remaining quantity is decremented
// (forcing soldout at zero), and exactly one provenance record bound to the
// trade is minted with the buyer as initial holder. If any step fails, no
// effect is observable.
func RecordTrade(ctx context.Context, db *sql.DB, actorID, commodityID, buyerID, quantity int64, reference string) (*model.Trade, error) {
	if buyerID == 0 {
		return nil, fmt.Errorf("%w: null buyer identity", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Any held role satisfies the buyer capability.
	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if !model.RoleAtLeast(actorRole, model.RoleBuyer) {
		return nil, fmt.Errorf("%w: buyer capability required", ErrPermissionDenied)
	}

	if _, err := accountRole(ctx, tx, buyerID); err != nil {
		return nil, err
	}

	c, err := getCommodityTx(ctx, tx, commodityID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CommodityStatusActive {
		return nil, fmt.Errorf("%w: commodity is %s", ErrInvalidState, c.Status)
	}
	if quantity > c.RemainingQuantity {
		return nil, fmt.Errorf("%w: insufficient quantity: have %d, need %d", ErrInvalidState, c.RemainingQuantity, quantity)
	}

	totalPrice := c.UnitPrice.Mul(decimal.NewFromInt(quantity))

	result, err := tx.ExecContext(ctx,
		`INSERT INTO trades (commodity_id, buyer_id, seller_id, quantity, unit_price, total_price, reference)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		commodityID, buyerID, c.OwnerID, quantity, c.UnitPrice.String(), totalPrice.String(), reference,
	)
	if err != nil {
		return nil, fmt.Errorf("recording trade: %w", err)
	}
	tradeID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting trade id: %w", err)
	}

	newRemaining := c.RemainingQuantity - quantity
	status := c.Status
	if newRemaining == 0 {
		status = model.CommodityStatusSoldOut
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE commodities SET remaining_quantity = ?, status = ? WHERE id = ?`,
		newRemaining, status, commodityID,
	); err != nil {
		return nil, fmt.Errorf("consuming commodity quantity: %w", err)
	}

	// Mint exactly one provenance record bound to this trade. The UNIQUE
	// constraint on trade_id backs the 1:1 invariant.
	recordResult, err := tx.ExecContext(ctx,
		`INSERT INTO provenance_records (trade_id, holder_id, metadata) VALUES (?, ?, ?)`,
		tradeID, buyerID, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("minting provenance record: %w", err)
	}
	recordID, err := recordResult.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting record id: %w", err)
	}

	if err := appendAudit(ctx, tx, "trade", tradeID, "trade.create", actorID, nil,
		map[string]any{"commodity_id": commodityID, "buyer_id": buyerID, "seller_id": c.OwnerID,
			"quantity": quantity, "unit_price": c.UnitPrice.String(), "total_price": totalPrice.String()}); err != nil {
		return nil, err
	}
	if err := appendAudit(ctx, tx, "commodity", commodityID, "commodity.consume", actorID,
		map[string]any{"remaining_quantity": c.RemainingQuantity, "status": c.Status},
		map[string]any{"remaining_quantity": newRemaining, "status": status}); err != nil {
		return nil, err
	}
	if err := appendAudit(ctx, tx, "record", recordID, "record.mint", actorID, nil,
		map[string]any{"trade_id": tradeID, "holder_id": buyerID, "status": model.RecordStatusActive}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing trade: %w", err)
	}

	return GetTrade(ctx, db, tradeID)
}

// CorrectTradeReference updates the stored external reference of a trade.
// This is the only trade field ever mutated after creation, and only by an
// administrator.
func CorrectTradeReference(ctx context.Context, db *sql.DB, actorID, tradeID int64, reference string) error {
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

	var oldRef sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT reference FROM trades WHERE id = ?`, tradeID,
	).Scan(&oldRef)
	if err == sql.ErrNoRows {
		return fmt.Errorf("trade %d: %w", tradeID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getting trade reference: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE trades SET reference = ? WHERE id = ?`, reference, tradeID,
	); err != nil {
		return fmt.Errorf("correcting trade reference: %w", err)
	}

	if err := appendAudit(ctx, tx, "trade", tradeID, "trade.reference", actorID,
		map[string]string{"reference": oldRef.String}, map[string]string{"reference": reference}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reference correction: %w", err)
	}
	return nil
}

// GetTrade returns a trade by ID with names joined.
func GetTrade(ctx context.Context, db *sql.DB, id int64) (*model.Trade, error) {
	t := &model.Trade{}
	var reference sql.NullString
	var unitPrice, totalPrice string
	err := db.QueryRowContext(ctx,
		`SELECT t.id, t.commodity_id, t.buyer_id, t.seller_id, t.quantity, t.unit_price, t.total_price,
		        t.reference, t.created_at,
		        c.title AS commodity_title, b.username AS buyer_name, s.username AS seller_name
		 FROM trades t
		 JOIN commodities c ON c.id = t.commodity_id
		 JOIN accounts b ON b.id = t.buyer_id
		 JOIN accounts s ON s.id = t.seller_id
		 WHERE t.id = ?`, id,
	).Scan(&t.ID, &t.CommodityID, &t.BuyerID, &t.SellerID, &t.Quantity, &unitPrice, &totalPrice,
		&reference, &t.CreatedAt, &t.CommodityTitle, &t.BuyerName, &t.SellerName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting trade: %w", err)
	}
	t.Reference = reference.String
	if t.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parsing trade unit price: %w", err)
	}
	if t.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
		return nil, fmt.Errorf("parsing trade total price: %w", err)
	}
	return t, nil
}

// ListTrades returns trades, optionally filtered by commodity or buyer.
func ListTrades(ctx context.Context, db *sql.DB, commodityID, buyerID int64) ([]model.Trade, error) {
	query := `SELECT t.id, t.commodity_id, t.buyer_id, t.seller_id, t.quantity, t.unit_price, t.total_price,
	                 t.reference, t.created_at,
	                 c.title AS commodity_title, b.username AS buyer_name, s.username AS seller_name
	          FROM trades t
	          JOIN commodities c ON c.id = t.commodity_id
	          JOIN accounts b ON b.id = t.buyer_id
	          JOIN accounts s ON s.id = t.seller_id
	          WHERE 1=1`
	var args []any

	if commodityID > 0 {
		query += ` AND t.commodity_id = ?`
		args = append(args, commodityID)
	}
	if buyerID > 0 {
		query += ` AND t.buyer_id = ?`
		args = append(args, buyerID)
	}

	query += ` ORDER BY t.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var reference sql.NullString
		var unitPrice, totalPrice string
		if err := rows.Scan(&t.ID, &t.CommodityID, &t.BuyerID, &t.SellerID, &t.Quantity, &unitPrice, &totalPrice,
			&reference, &t.CreatedAt, &t.CommodityTitle, &t.BuyerName, &t.SellerName); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Reference = reference.String
		if t.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parsing trade unit price: %w", err)
		}
		if t.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
			return nil, fmt.Errorf("parsing trade total price: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
