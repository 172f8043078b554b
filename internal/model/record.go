package model

import "time"

// Record is a provenance record: a uniquely held token bound permanently to
// one trade, representing audited evidence of that trade. Custody moves only
// through administrator-mediated transfer; holders cannot move it themselves.
type Record struct {
	ID        int64      `json:"id"`
	TradeID   int64      `json:"trade_id"`
	HolderID  int64      `json:"holder_id"`
	Status    string     `json:"status"`
	Metadata  string     `json:"metadata,omitempty"`
	MintedAt  time.Time  `json:"minted_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`

	// Joined fields (not always populated).
	HolderName string `json:"holder_name,omitempty"`
}

// Record statuses. Administrators may move a record between any two statuses.
const (
	RecordStatusActive  = "active"
	RecordStatusClaimed = "claimed"
	RecordStatusRevoked = "revoked"
)

// ValidRecordStatus reports whether status is a known record status.
func ValidRecordStatus(status string) bool {
	switch status {
	case RecordStatusActive, RecordStatusClaimed, RecordStatusRevoked:
		return true
	}
	return false
}
