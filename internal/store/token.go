package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/model"
)

// The value token is a fungible balance ledger managed by administrators.
// The core never moves value on its own; these operations back the
// redemption settlement flow. Mint and burn are all-or-nothing and refuse to
// run while the token is paused.

const tokenPausedKey = "token_paused"

// balanceTx reads an account's balance inside a transaction, zero if absent.
func balanceTx(ctx context.Context, q queryer, accountID int64) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE account_id = ?`, accountID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing balance: %w", err)
	}
	return balance, nil
}

// tokenPausedTx reports whether token mutations are paused.
func tokenPausedTx(ctx context.Context, q queryer) (bool, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, tokenPausedKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting token pause flag: %w", err)
	}
	return value == "1", nil
}

// requireTokenAdmin checks admin capability and the pause flag.
func requireTokenAdmin(ctx context.Context, q queryer, actorID int64) error {
	actorRole, err := accountRole(ctx, q, actorID)
	if err != nil {
		return err
	}
	if !model.RoleAtLeast(actorRole, model.RoleAdmin) {
		return fmt.Errorf("%w: admin capability required", ErrPermissionDenied)
	}
	paused, err := tokenPausedTx(ctx, q)
	if err != nil {
		return err
	}
	if paused {
		return fmt.Errorf("%w: token operations are paused", ErrInvalidState)
	}
	return nil
}

// MintToken credits an account's token balance. Admin-gated and atomic.
func MintToken(ctx context.Context, db *sql.DB, actorID, toID int64, amount decimal.Decimal) error {
	if toID == 0 {
		return fmt.Errorf("%w: null target identity", ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireTokenAdmin(ctx, tx, actorID); err != nil {
		return err
	}
	if _, err := accountRole(ctx, tx, toID); err != nil {
		return err
	}

	old, err := balanceTx(ctx, tx, toID)
	if err != nil {
		return err
	}
	updated := old.Add(amount)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO balances (account_id, balance) VALUES (?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET balance = ?`,
		toID, updated.String(), updated.String(),
	); err != nil {
		return fmt.Errorf("minting tokens: %w", err)
	}

	if err := appendAudit(ctx, tx, "token", toID, "token.mint", actorID,
		map[string]string{"balance": old.String()}, map[string]string{"balance": updated.String(), "amount": amount.String()}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mint: %w", err)
	}
	return nil
}

// BurnToken debits an account's token balance. Fails without partial effect
// if the balance is insufficient.
func BurnToken(ctx context.Context, db *sql.DB, actorID, fromID int64, amount decimal.Decimal) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := burnTokenTx(ctx, tx, actorID, fromID, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing burn: %w", err)
	}
	return nil
}

// burnTokenTx performs the burn inside an existing transaction so redemption
// can compose with it atomically.
func burnTokenTx(ctx context.Context, tx *sql.Tx, actorID, fromID int64, amount decimal.Decimal) error {
	if fromID == 0 {
		return fmt.Errorf("%w: null target identity", ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}

	if err := requireTokenAdmin(ctx, tx, actorID); err != nil {
		return err
	}

	old, err := balanceTx(ctx, tx, fromID)
	if err != nil {
		return err
	}
	if old.LessThan(amount) {
		return fmt.Errorf("%w: insufficient balance: have %s, need %s", ErrInvalidState, old, amount)
	}
	updated := old.Sub(amount)

	if _, err := tx.ExecContext(ctx,
		`UPDATE balances SET balance = ? WHERE account_id = ?`,
		updated.String(), fromID,
	); err != nil {
		return fmt.Errorf("burning tokens: %w", err)
	}

	if err := appendAudit(ctx, tx, "token", fromID, "token.burn", actorID,
		map[string]string{"balance": old.String()}, map[string]string{"balance": updated.String(), "amount": amount.String()}); err != nil {
		return err
	}
	return nil
}

// Redeem burns tokens from an account as the settlement of a redemption,
// recording the external reference in the audit stream. Admin-gated and
// pausable; the burn and the redemption event commit together.
func Redeem(ctx context.Context, db *sql.DB, actorID, accountID int64, amount decimal.Decimal, reference string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := burnTokenTx(ctx, tx, actorID, accountID, amount); err != nil {
		return err
	}

	if err := appendAudit(ctx, tx, "token", accountID, "token.redeem", actorID, nil,
		map[string]string{"amount": amount.String(), "reference": reference}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing redemption: %w", err)
	}
	return nil
}

// SetTokenPaused pauses or resumes token mutations. Admin-gated; allowed even
// while paused (otherwise it could never be resumed).
func SetTokenPaused(ctx context.Context, db *sql.DB, actorID int64, paused bool) error {
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

	old, err := tokenPausedTx(ctx, tx)
	if err != nil {
		return err
	}

	value := "0"
	if paused {
		value = "1"
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = ?`,
		tokenPausedKey, value, value,
	); err != nil {
		return fmt.Errorf("setting token pause flag: %w", err)
	}

	if err := appendAudit(ctx, tx, "token", 0, "token.pause", actorID,
		map[string]bool{"paused": old}, map[string]bool{"paused": paused}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pause flag: %w", err)
	}
	return nil
}

// TokenBalance returns an account's token balance, zero if none.
func TokenBalance(ctx context.Context, db *sql.DB, accountID int64) (decimal.Decimal, error) {
	return balanceTx(ctx, db, accountID)
}

// TokenPaused reports whether token mutations are currently paused.
func TokenPaused(ctx context.Context, db *sql.DB) (bool, error) {
	return tokenPausedTx(ctx, db)
}
