package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/db"
	"github.com/comtrace/comtrace/internal/model"
)

// newRecord runs the full listing → commodity → trade flow and returns the
// minted record plus the involved accounts.
func newRecord(t *testing.T, database *sql.DB) (record *model.Record, adminID, buyerID int64) {
	t.Helper()
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	trade, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 10, "PO-1")
	if err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	record, err = GetRecordByTrade(ctx, database, trade.ID)
	if err != nil || record == nil {
		t.Fatalf("GetRecordByTrade: %v, %v", record, err)
	}
	return record, admin.ID, buyer.ID
}

func TestUpdateRecordMetadataReturnsPrevious(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	record, adminID, buyerID := newRecord(t, database)

	prev, err := UpdateRecordMetadata(ctx, database, adminID, record.ID, "batch 42")
	if err != nil {
		t.Fatalf("UpdateRecordMetadata: %v", err)
	}
	if prev != "PO-1" {
		t.Errorf("previous metadata = %q, want PO-1", prev)
	}

	if _, err := UpdateRecordMetadata(ctx, database, buyerID, record.ID, "x"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for holder, got %v", err)
	}
}

func TestSetRecordStatusAnyDirection(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	record, adminID, _ := newRecord(t, database)

	// Administrators may move a record between any two statuses.
	for _, status := range []string{
		model.RecordStatusClaimed,
		model.RecordStatusRevoked,
		model.RecordStatusActive,
	} {
		if err := SetRecordStatus(ctx, database, adminID, record.ID, status); err != nil {
			t.Fatalf("SetRecordStatus(%s): %v", status, err)
		}
	}

	if err := SetRecordStatus(ctx, database, adminID, record.ID, "framed"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown status, got %v", err)
	}
}

func TestTransferCustodyAdminOnly(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	record, adminID, buyerID := newRecord(t, database)
	other := newAccount(t, database, "other", model.RoleBuyer)

	// The holder cannot move custody on their own.
	if err := TransferCustody(ctx, database, buyerID, record.ID, other.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for holder transfer, got %v", err)
	}

	if err := TransferCustody(ctx, database, adminID, record.ID, other.ID); err != nil {
		t.Fatalf("TransferCustody: %v", err)
	}

	got, _ := GetRecord(ctx, database, record.ID)
	if got.HolderID != other.ID {
		t.Errorf("holder = %d, want %d", got.HolderID, other.ID)
	}

	// Holder indexes follow the transfer.
	oldHolder, _ := ListRecordsByHolder(ctx, database, buyerID)
	if len(oldHolder) != 0 {
		t.Errorf("expected 0 records for old holder, got %d", len(oldHolder))
	}
	newHolder, _ := ListRecordsByHolder(ctx, database, other.ID)
	if len(newHolder) != 1 {
		t.Errorf("expected 1 record for new holder, got %d", len(newHolder))
	}
}

func TestRetireRecordRemovesFromHolderLookup(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	record, adminID, buyerID := newRecord(t, database)

	if err := RetireRecord(ctx, database, adminID, record.ID); err != nil {
		t.Fatalf("RetireRecord: %v", err)
	}

	held, _ := ListRecordsByHolder(ctx, database, buyerID)
	if len(held) != 0 {
		t.Errorf("expected retired record gone from holder lookup, got %d", len(held))
	}

	// The trade binding survives for audit purposes.
	got, _ := GetRecord(ctx, database, record.ID)
	if got == nil || got.TradeID != record.TradeID {
		t.Errorf("expected record still fetchable by id, got %+v", got)
	}
	if got.RetiredAt == nil || got.Status != model.RecordStatusRevoked {
		t.Errorf("expected revoked+retired record, got %+v", got)
	}

	// Retirement is permanent: no further mutation succeeds.
	if err := SetRecordStatus(ctx, database, adminID, record.ID, model.RecordStatusActive); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on retired record, got %v", err)
	}
	if err := TransferCustody(ctx, database, adminID, record.ID, buyerID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on retired record transfer, got %v", err)
	}
}

func TestRecordCountersIndependentOfTrades(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	// Trades and records keep separate monotonic sequences, and every trade
	// has exactly one bound record.
	for i := 1; i <= 3; i++ {
		trade, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 1, "")
		if err != nil {
			t.Fatalf("RecordTrade %d: %v", i, err)
		}
		record, _ := GetRecordByTrade(ctx, database, trade.ID)
		if record == nil {
			t.Fatalf("trade %d has no record", trade.ID)
		}
		if record.TradeID != trade.ID {
			t.Errorf("record %d bound to trade %d, want %d", record.ID, record.TradeID, trade.ID)
		}
	}

	var records, trades int
	database.QueryRow(`SELECT COUNT(*) FROM provenance_records`).Scan(&records)
	database.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&trades)
	if records != trades {
		t.Errorf("records = %d, trades = %d, want 1:1", records, trades)
	}
}
