package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateSpansBatchesOldestFirst(t *testing.T) {
	store := newMemoryStore()
	store.available[1] = []BatchAvailability{
		availability(1, "PRD20240301001", 1, 5),
		availability(2, "PRD20240305001", 5, 2),
	}
	allocator := NewAllocator()

	allocations, err := allocator.Allocate(context.Background(), store, ProductRef{ID: 1, Name: "Oolong Tea 250g"}, 7)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	require.Equal(t, "PRD20240301001", allocations[0].Batch.Number)
	require.Equal(t, int64(5), allocations[0].Quantity)
	require.Equal(t, "PRD20240305001", allocations[1].Batch.Number)
	require.Equal(t, int64(2), allocations[1].Quantity)
}

func TestAllocateStopsOnceSatisfied(t *testing.T) {
	store := newMemoryStore()
	store.available[1] = []BatchAvailability{
		availability(1, "PRD20240301001", 1, 5),
		availability(2, "PRD20240305001", 5, 2),
	}
	allocator := NewAllocator()

	allocations, err := allocator.Allocate(context.Background(), store, ProductRef{ID: 1, Name: "Oolong Tea 250g"}, 3)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.Equal(t, int64(3), allocations[0].Quantity)
}

func TestAllocateAggregatesShortfallAcrossBatches(t *testing.T) {
	store := newMemoryStore()
	store.available[1] = []BatchAvailability{
		availability(1, "PRD20240301001", 1, 5),
		availability(2, "PRD20240305001", 5, 2),
	}
	allocator := NewAllocator()

	allocations, err := allocator.Allocate(context.Background(), store, ProductRef{ID: 1, Name: "Oolong Tea 250g"}, 8)
	require.Nil(t, allocations)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(8), insufficient.Requested)
	require.Equal(t, int64(7), insufficient.Available)
}

func TestAllocateNoBatchesAtAll(t *testing.T) {
	store := newMemoryStore()
	allocator := NewAllocator()

	_, err := allocator.Allocate(context.Background(), store, ProductRef{ID: 2, Name: "Black Tea 500g"}, 1)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(0), insufficient.Available)
}
