package inventory

import (
	"context"
)

// Allocator partitions a required quantity across batches first-in-first-out:
// earliest production date first, batch id as tie-break. Allocate is pure —
// it reads availability and returns a plan without mutating any record;
// callers apply the plan through the Ledger.
type Allocator struct{}

// NewAllocator builds Allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns (batch, quantity) pairs covering required. Disabled
// batches never appear in the availability list. When the full list is
// exhausted before required is covered the call fails with an aggregated
// InsufficientStockError and no allocation is returned.
func (a *Allocator) Allocate(ctx context.Context, store Store, product ProductRef, required int64) ([]Allocation, error) {
	available, err := store.ListAvailable(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	var allocations []Allocation
	var total int64
	remaining := required
	for _, row := range available {
		total += row.Quantity
		if remaining <= 0 {
			continue
		}
		take := remaining
		if row.Quantity < take {
			take = row.Quantity
		}
		allocations = append(allocations, Allocation{Batch: row.Batch, Quantity: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, &InsufficientStockError{Product: product, Requested: required, Available: total}
	}
	return allocations, nil
}
