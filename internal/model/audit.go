package model

import "time"

// AuditEvent is one entry in the append-only audit stream. Every mutating
// operation writes exactly one event per entity transition, carrying the old
// and new value where applicable.
type AuditEvent struct {
	ID        string    `json:"id"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Action    string    `json:"action"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
