package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing represents a seller's request to offer a commodity for sale.
// It is owned by the proposing account while pending and becomes immutable
// once it reaches a terminal status.
type Listing struct {
	ID          int64           `json:"id"`
	ProposerID  int64           `json:"proposer_id"`
	Title       string          `json:"title"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Status      string          `json:"status"`
	Remark      string          `json:"remark,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	ProposerName string `json:"proposer_name,omitempty"`
}

// Listing statuses. Approved, rejected and cancelled are terminal.
const (
	ListingStatusPending   = "pending"
	ListingStatusApproved  = "approved"
	ListingStatusRejected  = "rejected"
	ListingStatusCancelled = "cancelled"
)
