package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'none' CHECK (role IN ('none', 'buyer', 'seller', 'admin', 'superadmin')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username_active
    ON accounts(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS listings (
    id          INTEGER PRIMARY KEY,
    proposer_id INTEGER NOT NULL REFERENCES accounts(id),
    title       TEXT NOT NULL,
    category    TEXT,
    description TEXT,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    unit_price  TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
    remark      TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_listings_proposer ON listings(proposer_id);

CREATE TABLE IF NOT EXISTS commodities (
    id                 INTEGER PRIMARY KEY,
    listing_id         INTEGER NOT NULL UNIQUE REFERENCES listings(id),
    owner_id           INTEGER NOT NULL REFERENCES accounts(id),
    title              TEXT NOT NULL,
    category           TEXT,
    misc               TEXT,
    total_quantity     INTEGER NOT NULL CHECK (total_quantity > 0),
    remaining_quantity INTEGER NOT NULL CHECK (remaining_quantity >= 0 AND remaining_quantity <= total_quantity),
    unit_price         TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('inactive', 'active', 'soldout', 'removed')),
    stage              TEXT,
    location           TEXT,
    image              BLOB,
    image_mime         TEXT,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_commodities_owner ON commodities(owner_id);

CREATE TABLE IF NOT EXISTS trades (
    id           INTEGER PRIMARY KEY,
    commodity_id INTEGER NOT NULL REFERENCES commodities(id),
    buyer_id     INTEGER NOT NULL REFERENCES accounts(id),
    seller_id    INTEGER NOT NULL REFERENCES accounts(id),
    quantity     INTEGER NOT NULL CHECK (quantity > 0),
    unit_price   TEXT NOT NULL,
    total_price  TEXT NOT NULL,
    reference    TEXT,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_commodity ON trades(commodity_id);
CREATE INDEX IF NOT EXISTS idx_trades_buyer ON trades(buyer_id);

CREATE TABLE IF NOT EXISTS provenance_records (
    id         INTEGER PRIMARY KEY,
    trade_id   INTEGER NOT NULL UNIQUE REFERENCES trades(id),
    holder_id  INTEGER NOT NULL REFERENCES accounts(id),
    status     TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'claimed', 'revoked')),
    metadata   TEXT,
    minted_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    retired_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_records_holder ON provenance_records(holder_id);

CREATE TABLE IF NOT EXISTS balances (
    account_id INTEGER PRIMARY KEY REFERENCES accounts(id),
    balance    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
    id         TEXT PRIMARY KEY,
    entity     TEXT NOT NULL,
    entity_id  INTEGER NOT NULL,
    action     TEXT NOT NULL,
    actor_id   INTEGER,
    old_value  TEXT,
    new_value  TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_events(entity, entity_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
