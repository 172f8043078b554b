package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/db"
	"github.com/comtrace/comtrace/internal/model"
)

func TestCreateListing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seller := newAccount(t, database, "seller", model.RoleSeller)

	l, err := CreateListing(ctx, database, seller.ID, "Arabica beans", "coffee", "first harvest", 100, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if l.ID != 1 {
		t.Errorf("expected id 1, got %d", l.ID)
	}
	if l.Status != model.ListingStatusPending {
		t.Errorf("expected status pending, got %q", l.Status)
	}

	// Seller capability required.
	buyer := newAccount(t, database, "buyer", model.RoleBuyer)
	if _, err := CreateListing(ctx, database, buyer.ID, "x", "", "", 1, decimal.NewFromInt(1)); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for buyer, got %v", err)
	}

	// Field validation.
	if _, err := CreateListing(ctx, database, seller.ID, "", "", "", 1, decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty title, got %v", err)
	}
	if _, err := CreateListing(ctx, database, seller.ID, "x", "", "", 0, decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero quantity, got %v", err)
	}
}

func TestUpdateListingProposerOnly(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seller := newAccount(t, database, "seller", model.RoleSeller)
	other := newAccount(t, database, "other", model.RoleSeller)

	l, _ := CreateListing(ctx, database, seller.ID, "Beans", "", "", 10, decimal.NewFromInt(2))

	if _, err := UpdateListing(ctx, database, other.ID, l.ID, "Hijacked", "", "", 10, decimal.NewFromInt(2)); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for non-proposer, got %v", err)
	}

	updated, err := UpdateListing(ctx, database, seller.ID, l.ID, "Better beans", "coffee", "", 20, decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("UpdateListing: %v", err)
	}
	if updated.Title != "Better beans" || updated.Quantity != 20 {
		t.Errorf("update not applied: %+v", updated)
	}
}

func TestApproveListingCreatesCommodity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)

	l, _ := CreateListing(ctx, database, seller.ID, "Beans", "coffee", "notes", 100, decimal.NewFromInt(5))

	c, err := ApproveListing(ctx, database, admin.ID, l.ID, "ok")
	if err != nil {
		t.Fatalf("ApproveListing: %v", err)
	}
	if c.ID != 1 {
		t.Errorf("expected commodity id 1, got %d", c.ID)
	}
	if c.OwnerID != seller.ID {
		t.Errorf("expected owner %d, got %d", seller.ID, c.OwnerID)
	}
	if c.TotalQuantity != 100 || c.RemainingQuantity != 100 {
		t.Errorf("expected total=remaining=100, got %d/%d", c.TotalQuantity, c.RemainingQuantity)
	}
	if c.Status != model.CommodityStatusActive {
		t.Errorf("expected active, got %q", c.Status)
	}

	got, _ := GetListing(ctx, database, l.ID)
	if got.Status != model.ListingStatusApproved || got.Remark != "ok" {
		t.Errorf("listing not approved: %+v", got)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seller := newAccount(t, database, "seller", model.RoleSeller)
	l, _ := CreateListing(ctx, database, seller.ID, "Beans", "", "", 10, decimal.NewFromInt(1))

	if _, err := ApproveListing(ctx, database, seller.ID, l.ID, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for seller approval, got %v", err)
	}
}

func TestListingTerminalPermanence(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	seller := newAccount(t, database, "seller", model.RoleSeller)

	price := decimal.NewFromInt(1)

	// One listing per terminal status.
	approved, _ := CreateListing(ctx, database, seller.ID, "A", "", "", 10, price)
	rejected, _ := CreateListing(ctx, database, seller.ID, "B", "", "", 10, price)
	cancelled, _ := CreateListing(ctx, database, seller.ID, "C", "", "", 10, price)

	if _, err := ApproveListing(ctx, database, admin.ID, approved.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := RejectListing(ctx, database, admin.ID, rejected.ID, "no"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := CancelListing(ctx, database, seller.ID, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, id := range []int64{approved.ID, rejected.ID, cancelled.ID} {
		if _, err := UpdateListing(ctx, database, seller.ID, id, "X", "", "", 10, price); !errors.Is(err, ErrInvalidState) {
			t.Errorf("listing %d: expected ErrInvalidState on edit, got %v", id, err)
		}
		if err := CancelListing(ctx, database, seller.ID, id); !errors.Is(err, ErrInvalidState) {
			t.Errorf("listing %d: expected ErrInvalidState on cancel, got %v", id, err)
		}
		if _, err := ApproveListing(ctx, database, admin.ID, id, ""); !errors.Is(err, ErrInvalidState) {
			t.Errorf("listing %d: expected ErrInvalidState on approve, got %v", id, err)
		}
		if err := RejectListing(ctx, database, admin.ID, id, ""); !errors.Is(err, ErrInvalidState) {
			t.Errorf("listing %d: expected ErrInvalidState on reject, got %v", id, err)
		}
	}

	// Annotation is allowed in any status.
	if err := AnnotateListing(ctx, database, admin.ID, approved.ID, "audit note"); err != nil {
		t.Errorf("AnnotateListing on approved: %v", err)
	}
	got, _ := GetListing(ctx, database, approved.ID)
	if got.Remark != "audit note" {
		t.Errorf("remark = %q, want audit note", got.Remark)
	}
}

func TestListListingsFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := newAccount(t, database, "admin", model.RoleAdmin)
	s1 := newAccount(t, database, "s1", model.RoleSeller)
	s2 := newAccount(t, database, "s2", model.RoleSeller)

	l1, _ := CreateListing(ctx, database, s1.ID, "A", "", "", 10, decimal.NewFromInt(1))
	CreateListing(ctx, database, s2.ID, "B", "", "", 10, decimal.NewFromInt(1))
	ApproveListing(ctx, database, admin.ID, l1.ID, "")

	all, _ := ListListings(ctx, database, 0, "")
	if len(all) != 2 {
		t.Errorf("expected 2 listings, got %d", len(all))
	}

	byProposer, _ := ListListings(ctx, database, s1.ID, "")
	if len(byProposer) != 1 {
		t.Errorf("expected 1 listing for s1, got %d", len(byProposer))
	}

	pending, _ := ListListings(ctx, database, 0, model.ListingStatusPending)
	if len(pending) != 1 {
		t.Errorf("expected 1 pending listing, got %d", len(pending))
	}
}
