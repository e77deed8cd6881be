package faults

import "time"

// Fault is a persisted audit entry for a scan that ended in tool_error,
// timeout or partial_persist. Faults are evidence, not control flow: a
// recorded fault never aborts its batch.
type Fault struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	Image       string    `json:"image"`
	Phase       string    `json:"phase"` // execute | persist | aggregate
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
