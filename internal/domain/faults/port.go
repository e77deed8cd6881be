package faults

import "context"

// Repository defines persistence for fault audit entries
type Repository interface {
	Save(ctx context.Context, f *Fault) error
	ListByBatch(ctx context.Context, batchID string, limit int) ([]*Fault, error)
}
