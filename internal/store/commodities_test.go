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

// newCommodity creates an approved commodity owned by seller via the listing
// workflow, the only creation path.
func newCommodity(t *testing.T, database *sql.DB, adminID, sellerID int64, title string, quantity int64, price decimal.Decimal) *model.Commodity {
	t.Helper()
	ctx := context.Background()
	l, err := CreateListing(ctx, database, sellerID, title, "", "", quantity, price)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	c, err := ApproveListing(ctx, database, adminID, l.ID, "ok")
	if err != nil {
		t.Fatalf("ApproveListing: %v", err)
	}
	return c
}

func TestUpdateStage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	other := newAccount(t, database, "other", model.RoleSeller)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	if err := UpdateStage(ctx, database, seller.ID, c.ID, "shipping", "port of Koper", "container 7"); err != nil {
		t.Fatalf("UpdateStage by owner: %v", err)
	}
	if err := UpdateStage(ctx, database, admin.ID, c.ID, "customs", "Ljubljana", ""); err != nil {
		t.Fatalf("UpdateStage by admin: %v", err)
	}
	if err := UpdateStage(ctx, database, other.ID, c.ID, "x", "", ""); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for unrelated seller, got %v", err)
	}

	got, _ := GetCommodity(ctx, database, c.ID)
	if got.Stage != "customs" || got.Location != "Ljubljana" {
		t.Errorf("stage not applied: %+v", got)
	}

	// Stage updates require an active commodity.
	SetCommodityStatus(ctx, database, admin.ID, c.ID, model.CommodityStatusInactive)
	if err := UpdateStage(ctx, database, seller.ID, c.ID, "x", "", ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on inactive commodity, got %v", err)
	}
}

func TestSetCommodityStatusUnrestricted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	// No transition table: any status is reachable from any status.
	for _, status := range []string{
		model.CommodityStatusRemoved,
		model.CommodityStatusActive,
		model.CommodityStatusSoldOut,
		model.CommodityStatusInactive,
		model.CommodityStatusActive,
	} {
		if err := SetCommodityStatus(ctx, database, admin.ID, c.ID, status); err != nil {
			t.Fatalf("SetCommodityStatus(%s): %v", status, err)
		}
	}

	if err := SetCommodityStatus(ctx, database, admin.ID, c.ID, "melted"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown status, got %v", err)
	}
}

func TestUpdateCommodityDetailsLeavesQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	if err := UpdateCommodityDetails(ctx, database, seller.ID, c.ID, "Premium beans", "coffee", decimal.NewFromInt(9), "roasted"); err != nil {
		t.Fatalf("UpdateCommodityDetails: %v", err)
	}

	got, _ := GetCommodity(ctx, database, c.ID)
	if got.Title != "Premium beans" || !got.UnitPrice.Equal(decimal.NewFromInt(9)) {
		t.Errorf("details not applied: %+v", got)
	}
	if got.TotalQuantity != 100 || got.RemainingQuantity != 100 {
		t.Errorf("quantity must not change, got %d/%d", got.RemainingQuantity, got.TotalQuantity)
	}
}

func TestAdjustRemaining(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	if err := AdjustRemaining(ctx, database, admin.ID, c.ID, 40); err != nil {
		t.Fatalf("AdjustRemaining: %v", err)
	}
	got, _ := GetCommodity(ctx, database, c.ID)
	if got.RemainingQuantity != 40 {
		t.Errorf("remaining = %d, want 40", got.RemainingQuantity)
	}

	// Bounds.
	if err := AdjustRemaining(ctx, database, admin.ID, c.ID, 101); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument above total, got %v", err)
	}
	if err := AdjustRemaining(ctx, database, admin.ID, c.ID, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument below zero, got %v", err)
	}

	// The override may also increase remaining, unlike trades.
	if err := AdjustRemaining(ctx, database, admin.ID, c.ID, 100); err != nil {
		t.Errorf("AdjustRemaining increase: %v", err)
	}

	// Zero forces soldout.
	if err := AdjustRemaining(ctx, database, admin.ID, c.ID, 0); err != nil {
		t.Fatalf("AdjustRemaining to zero: %v", err)
	}
	got, _ = GetCommodity(ctx, database, c.ID)
	if got.Status != model.CommodityStatusSoldOut {
		t.Errorf("status = %q, want soldout", got.Status)
	}
}

func TestCommodityImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)
	c := newCommodity(t, database, admin.ID, seller.ID, "Beans", 100, decimal.NewFromInt(5))

	imageData := []byte("fake image data")
	if err := SetCommodityImage(ctx, database, seller.ID, c.ID, imageData, "image/jpeg"); err != nil {
		t.Fatalf("SetCommodityImage: %v", err)
	}

	data, mime, err := GetCommodityImage(ctx, database, c.ID)
	if err != nil {
		t.Fatalf("GetCommodityImage: %v", err)
	}
	if string(data) != "fake image data" {
		t.Errorf("expected image data, got %q", string(data))
	}
	if mime != "image/jpeg" {
		t.Errorf("expected mime 'image/jpeg', got %q", mime)
	}
}

func TestListCommoditiesByOwner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	s1 := newAccount(t, database, "s1", model.RoleSeller)
	s2 := newAccount(t, database, "s2", model.RoleSeller)

	newCommodity(t, database, admin.ID, s1.ID, "A", 10, decimal.NewFromInt(1))
	newCommodity(t, database, admin.ID, s2.ID, "B", 10, decimal.NewFromInt(1))

	all, _ := ListCommodities(ctx, database, 0, "")
	if len(all) != 2 {
		t.Errorf("expected 2 commodities, got %d", len(all))
	}
	mine, _ := ListCommodities(ctx, database, s1.ID, "")
	if len(mine) != 1 {
		t.Errorf("expected 1 commodity for s1, got %d", len(mine))
	}
}
