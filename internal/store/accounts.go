package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/comtrace/comtrace/internal/model"
)

// accountRole returns the current role of an active account.
func accountRole(ctx context.Context, q queryer, id int64) (string, error) {
	var role string
	err := q.QueryRowContext(ctx,
		`SELECT role FROM accounts WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting account role: %w", err)
	}
	return role, nil
}

// CreateAccount creates a new account with the given role. This is the
// low-level entry used at bootstrap; role-gated registration goes through
// RegisterAccount.
func CreateAccount(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.Account, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting account id: %w", err)
	}

	if err := appendAudit(ctx, db, "account", id, "account.create", 0, nil, map[string]string{"username": username, "role": role}); err != nil {
		return nil, err
	}

	return GetAccount(ctx, db, id)
}

// RegisterAccount creates a new account on behalf of actor, applying the
// grant permission rules to the initial role. Registering with RoleSuperAdmin
// is never allowed; the root identity only moves through TransferRoot.
func RegisterAccount(ctx context.Context, db *sql.DB, actorID int64, username, passwordHash, role string) (*model.Account, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidArgument)
	}
	if role == model.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: root is transferred, not created", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if err := checkGrantPermission(actorRole, role); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting account id: %w", err)
	}

	if err := appendAudit(ctx, tx, "account", id, "account.create", actorID, nil, map[string]string{"username": username, "role": role}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing account: %w", err)
	}

	return GetAccount(ctx, db, id)
}

// checkGrantPermission enforces the grant hierarchy: admin assignments need
// the root, buyer/seller assignments need the root or an admin. RoleNone is
// grantable by admins too (an account with no capability yet).
func checkGrantPermission(actorRole, grantedRole string) error {
	switch grantedRole {
	case model.RoleAdmin, model.RoleSuperAdmin:
		if actorRole != model.RoleSuperAdmin {
			return fmt.Errorf("%w: only the root may manage admins", ErrPermissionDenied)
		}
	case model.RoleBuyer, model.RoleSeller, model.RoleNone:
		if !model.RoleAtLeast(actorRole, model.RoleAdmin) {
			return fmt.Errorf("%w: admin capability required", ErrPermissionDenied)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, grantedRole)
	}
	return nil
}

// GrantRole assigns a role to target, replacing any previous role. Granting
// RoleSuperAdmin is the root-transfer transition: the actor must be the root
// and is atomically demoted, so exactly one root exists at all times.
func GrantRole(ctx context.Context, db *sql.DB, actorID, targetID int64, role string) error {
	if targetID == 0 {
		return fmt.Errorf("%w: null target identity", ErrInvalidArgument)
	}
	if !model.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}

	if role == model.RoleSuperAdmin {
		return TransferRoot(ctx, db, actorID, targetID)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return err
	}
	if err := checkGrantPermission(actorRole, role); err != nil {
		return err
	}

	targetRole, err := accountRole(ctx, tx, targetID)
	if err != nil {
		return err
	}
	if targetRole == model.RoleSuperAdmin {
		return fmt.Errorf("%w: the root role is transferred, not overwritten", ErrInvalidState)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET role = ? WHERE id = ?`, role, targetID,
	); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}

	if err := appendAudit(ctx, tx, "account", targetID, "role.grant", actorID,
		map[string]string{"role": targetRole}, map[string]string{"role": role}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing grant: %w", err)
	}
	return nil
}

// RevokeRole removes target's role. The permission rule is evaluated against
// the role being removed. The root's own role cannot be revoked, only
// transferred.
func RevokeRole(ctx context.Context, db *sql.DB, actorID, targetID int64) error {
	if targetID == 0 {
		return fmt.Errorf("%w: null target identity", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return err
	}

	targetRole, err := accountRole(ctx, tx, targetID)
	if err != nil {
		return err
	}
	if targetRole == model.RoleNone {
		return fmt.Errorf("%w: account %d has no role", ErrNotFound, targetID)
	}
	if targetRole == model.RoleSuperAdmin {
		return fmt.Errorf("%w: the root role is transferred, not revoked", ErrInvalidState)
	}
	if err := checkGrantPermission(actorRole, targetRole); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET role = ? WHERE id = ?`, model.RoleNone, targetID,
	); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}

	if err := appendAudit(ctx, tx, "account", targetID, "role.revoke", actorID,
		map[string]string{"role": targetRole}, map[string]string{"role": model.RoleNone}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing revoke: %w", err)
	}
	return nil
}

// TransferRoot atomically demotes the current root and promotes newRoot.
// There is no observable window with zero or two roots: both updates commit
// in one transaction.
func TransferRoot(ctx context.Context, db *sql.DB, actorID, newRootID int64) error {
	if newRootID == 0 {
		return fmt.Errorf("%w: null target identity", ErrInvalidArgument)
	}
	if newRootID == actorID {
		return fmt.Errorf("%w: cannot transfer root to self", ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actorRole, err := accountRole(ctx, tx, actorID)
	if err != nil {
		return err
	}
	if actorRole != model.RoleSuperAdmin {
		return fmt.Errorf("%w: only the root may transfer root", ErrPermissionDenied)
	}

	newRootRole, err := accountRole(ctx, tx, newRootID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET role = ? WHERE id = ?`, model.RoleNone, actorID,
	); err != nil {
		return fmt.Errorf("demoting old root: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET role = ? WHERE id = ?`, model.RoleSuperAdmin, newRootID,
	); err != nil {
		return fmt.Errorf("promoting new root: %w", err)
	}

	if err := appendAudit(ctx, tx, "account", newRootID, "root.transfer", actorID,
		map[string]any{"root": actorID, "role": newRootRole},
		map[string]any{"root": newRootID, "role": model.RoleSuperAdmin}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing root transfer: %w", err)
	}
	return nil
}

// HasCapability reports whether the account's role satisfies the minimum.
// Higher roles satisfy lower-role checks; an account without a role (or an
// unknown account) satisfies nothing.
func HasCapability(ctx context.Context, db *sql.DB, accountID int64, minimum string) (bool, error) {
	role, err := accountRole(ctx, db, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return model.RoleAtLeast(role, minimum), nil
}

// GetAccount returns an account by ID.
func GetAccount(ctx context.Context, db *sql.DB, id int64) (*model.Account, error) {
	a := &model.Account{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at, deleted_at
		 FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

// GetAccountByUsername returns an account by username (including soft-deleted
// for auth checks).
func GetAccountByUsername(ctx context.Context, db *sql.DB, username string) (*model.Account, error) {
	a := &model.Account{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at, deleted_at
		 FROM accounts WHERE username = ?`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by username: %w", err)
	}
	return a, nil
}

// ListAccounts returns all non-deleted accounts.
func ListAccounts(ctx context.Context, db *sql.DB) ([]model.Account, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, created_at, deleted_at
		 FROM accounts WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccountPassword updates an account's password hash.
func UpdateAccountPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating account password: %w", err)
	}
	return nil
}

// DeleteAccount soft-deletes an account. The root cannot be deleted.
func DeleteAccount(ctx context.Context, db *sql.DB, actorID, id int64) error {
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

	role, err := accountRole(ctx, tx, id)
	if err != nil {
		return err
	}
	if role == model.RoleSuperAdmin {
		return fmt.Errorf("%w: the root account cannot be deleted", ErrInvalidState)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	if err := appendAudit(ctx, tx, "account", id, "account.delete", actorID,
		map[string]string{"role": role}, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}
