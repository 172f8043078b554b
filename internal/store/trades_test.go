package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/db"
	"github.com/comtrace/comtrace/internal/model"
)

func TestRecordTradeBasic(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	trade, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 30, "PO-1001")
	if err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	if trade.ID != 1 {
		t.Errorf("expected trade id 1, got %d", trade.ID)
	}
	if trade.SellerID != seller.ID {
		t.Errorf("seller snapshot = %d, want %d", trade.SellerID, seller.ID)
	}
	if !trade.TotalPrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("total price = %s, want 150", trade.TotalPrice)
	}

	got, _ := GetCommodity(ctx, database, c.ID)
	if got.RemainingQuantity != 70 {
		t.Errorf("remaining = %d, want 70", got.RemainingQuantity)
	}

	// Exactly one provenance record bound to the trade, held by the buyer.
	record, err := GetRecordByTrade(ctx, database, trade.ID)
	if err != nil {
		t.Fatalf("GetRecordByTrade: %v", err)
	}
	if record == nil {
		t.Fatal("expected a provenance record for the trade")
	}
	if record.ID != 1 || record.HolderID != buyer.ID || record.Status != model.RecordStatusActive {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.Metadata != "PO-1001" {
		t.Errorf("record metadata = %q, want trade reference", record.Metadata)
	}
}

func TestRecordTradeExhaustionForcesSoldOut(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 30, "")
	trade2, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 70, "")
	if err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	if trade2.ID != 2 {
		t.Errorf("expected trade id 2, got %d", trade2.ID)
	}

	got, _ := GetCommodity(ctx, database, c.ID)
	if got.RemainingQuantity != 0 {
		t.Errorf("remaining = %d, want 0", got.RemainingQuantity)
	}
	if got.Status != model.CommodityStatusSoldOut {
		t.Errorf("status = %q, want soldout", got.Status)
	}

	record2, _ := GetRecordByTrade(ctx, database, trade2.ID)
	if record2 == nil || record2.ID != 2 {
		t.Errorf("expected record id 2 for trade 2, got %+v", record2)
	}

	// Sold-out commodity can no longer be traded.
	if _, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 1, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on soldout commodity, got %v", err)
	}
}

func TestRecordTradePreconditions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	bare := newAccount(t, database, "bare", model.RoleNone)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 10, decimal.NewFromInt(5))

	// Quantity bounds.
	if _, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero quantity, got %v", err)
	}
	if _, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 11, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for excess quantity, got %v", err)
	}

	// Null buyer.
	if _, err := RecordTrade(ctx, database, buyer.ID, c.ID, 0, 1, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for null buyer, got %v", err)
	}

	// Roleless caller has no buyer capability.
	if _, err := RecordTrade(ctx, database, bare.ID, c.ID, bare.ID, 1, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for roleless caller, got %v", err)
	}

	// Any held role subsumes buyer capability.
	if _, err := RecordTrade(ctx, database, seller.ID, c.ID, buyer.ID, 1, ""); err != nil {
		t.Errorf("seller recording a trade: %v", err)
	}
	if _, err := RecordTrade(ctx, database, admin.ID, c.ID, buyer.ID, 1, ""); err != nil {
		t.Errorf("admin recording a trade: %v", err)
	}

	// Inactive commodity cannot be traded.
	SetCommodityStatus(ctx, database, admin.ID, c.ID, model.CommodityStatusInactive)
	if _, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 1, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on inactive commodity, got %v", err)
	}

	// Unknown commodity.
	if _, err := RecordTrade(ctx, database, buyer.ID, 999, buyer.ID, 1, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown commodity, got %v", err)
	}
}

func TestTradePriceSnapshotImmutable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	trade, _ := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 10, "")

	// Later price edits must not retroactively alter historical trades.
	if err := UpdateCommodityDetails(ctx, database, seller.ID, c.ID, "Beans", "", decimal.NewFromInt(50), ""); err != nil {
		t.Fatalf("UpdateCommodityDetails: %v", err)
	}

	got, _ := GetTrade(ctx, database, trade.ID)
	if !got.UnitPrice.Equal(decimal.NewFromInt(5)) {
		t.Errorf("trade unit price = %s, want snapshot 5", got.UnitPrice)
	}
	if !got.TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("trade total price = %s, want 50", got.TotalPrice)
	}
}

func TestQuantityConservation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	for _, qty := range []int64{10, 25, 5} {
		if _, err := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, qty, ""); err != nil {
			t.Fatalf("RecordTrade(%d): %v", qty, err)
		}
	}

	trades, _ := ListTrades(ctx, database, c.ID, 0)
	var consumed int64
	for _, tr := range trades {
		consumed += tr.Quantity
	}

	got, _ := GetCommodity(ctx, database, c.ID)
	if consumed != got.TotalQuantity-got.RemainingQuantity {
		t.Errorf("consumed %d, but total-remaining = %d", consumed, got.TotalQuantity-got.RemainingQuantity)
	}
}

func TestCorrectTradeReference(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	trade, _ := RecordTrade(ctx, database, buyer.ID, c.ID, buyer.ID, 10, "PO-1")

	if err := CorrectTradeReference(ctx, database, buyer.ID, trade.ID, "PO-2"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for buyer correction, got %v", err)
	}

	if err := CorrectTradeReference(ctx, database, admin.ID, trade.ID, "PO-2"); err != nil {
		t.Fatalf("CorrectTradeReference: %v", err)
	}
	got, _ := GetTrade(ctx, database, trade.ID)
	if got.Reference != "PO-2" {
		t.Errorf("reference = %q, want PO-2", got.Reference)
	}

	if err := CorrectTradeReference(ctx, database, admin.ID, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown trade, got %v", err)
	}
}

func TestListTradesIndexes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	b1 := newAccount(t, database, "b1", model.RoleBuyer)
	b2 := newAccount(t, database, "b2", model.RoleBuyer)
	c1 := newCommodity(t, database, admin.ID, seller.ID, "A", 100, decimal.NewFromInt(1))
	c2 := newCommodity(t, database, admin.ID, seller.ID, "B", 100, decimal.NewFromInt(1))

	RecordTrade(ctx, database, b1.ID, c1.ID, b1.ID, 1, "")
	RecordTrade(ctx, database, b1.ID, c2.ID, b1.ID, 2, "")
	RecordTrade(ctx, database, b2.ID, c1.ID, b2.ID, 3, "")

	byCommodity, _ := ListTrades(ctx, database, c1.ID, 0)
	if len(byCommodity) != 2 {
		t.Errorf("expected 2 trades for commodity 1, got %d", len(byCommodity))
	}
	byBuyer, _ := ListTrades(ctx, database, 0, b1.ID)
	if len(byBuyer) != 2 {
		t.Errorf("expected 2 trades for buyer 1, got %d", len(byBuyer))
	}
}
