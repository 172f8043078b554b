package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade records a buyer consuming commodity quantity. Seller and unit price
// are snapshotted from the commodity at trade time, so later commodity edits
// never alter historical trades. Immutable after creation except for the
// administrator-only external reference correction.
type Trade struct {
	ID          int64           `json:"id"`
	CommodityID int64           `json:"commodity_id"`
	BuyerID     int64           `json:"buyer_id"`
	SellerID    int64           `json:"seller_id"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	CommodityTitle string `json:"commodity_title,omitempty"`
	BuyerName      string `json:"buyer_name,omitempty"`
	SellerName     string `json:"seller_name,omitempty"`
}
