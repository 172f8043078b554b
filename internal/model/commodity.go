package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commodity represents a sellable good created from an approved listing.
// TotalQuantity is fixed at creation; RemainingQuantity only moves through
// trade consumption or an authorized administrative adjustment.
type Commodity struct {
	ID                int64           `json:"id"`
	ListingID         int64           `json:"listing_id"`
	OwnerID           int64           `json:"owner_id"`
	Title             string          `json:"title"`
	Category          string          `json:"category,omitempty"`
	Misc              string          `json:"misc,omitempty"`
	TotalQuantity     int64           `json:"total_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Status            string          `json:"status"`
	Stage             string          `json:"stage,omitempty"`
	Location          string          `json:"location,omitempty"`
	ImageMime         string          `json:"image_mime,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	OwnerName string `json:"owner_name,omitempty"`
}

// Commodity statuses. Unlike listings there is no transition table: an
// authorized caller may move a commodity between any two statuses, except
// that exhausting the remaining quantity always forces soldout.
const (
	CommodityStatusInactive = "inactive"
	CommodityStatusActive   = "active"
	CommodityStatusSoldOut  = "soldout"
	CommodityStatusRemoved  = "removed"
)

// ValidCommodityStatus reports whether status is a known commodity status.
func ValidCommodityStatus(status string) bool {
	switch status {
	case CommodityStatusInactive, CommodityStatusActive, CommodityStatusSoldOut, CommodityStatusRemoved:
		return true
	}
	return false
}
