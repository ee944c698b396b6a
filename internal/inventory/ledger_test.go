package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordKey struct {
	productID int64
	batchID   int64
}

type memoryStore struct {
	records   map[recordKey]*Record
	available map[int64][]BatchAvailability
	nextID    int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:   map[recordKey]*Record{},
		available: map[int64][]BatchAvailability{},
	}
}

func key(productID int64, batchID *int64) recordKey {
	k := recordKey{productID: productID}
	if batchID != nil {
		k.batchID = *batchID
	}
	return k
}

func (m *memoryStore) GetRecordForUpdate(_ context.Context, productID int64, batchID *int64) (Record, error) {
	rec, ok := m.records[key(productID, batchID)]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return *rec, nil
}

func (m *memoryStore) InsertRecord(_ context.Context, rec Record) (int64, error) {
	m.nextID++
	rec.ID = m.nextID
	m.records[key(rec.ProductID, rec.BatchID)] = &rec
	return rec.ID, nil
}

func (m *memoryStore) UpdateRecordQuantity(_ context.Context, recordID, quantity int64) error {
	for _, rec := range m.records {
		if rec.ID == recordID {
			rec.Quantity = quantity
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memoryStore) ListAvailable(_ context.Context, productID int64) ([]BatchAvailability, error) {
	return m.available[productID], nil
}

func (m *memoryStore) seed(productID int64, batchID int64, qty int64) {
	id := batchID
	m.nextID++
	m.records[key(productID, &id)] = &Record{ID: m.nextID, ProductID: productID, BatchID: &id, Quantity: qty}
}

func TestStockInCreatesRecordLazily(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger()
	batch := &BatchRef{ID: 3, Number: "PRD20240315001"}

	rec, err := ledger.StockIn(context.Background(), store, Movement{
		Product: ProductRef{ID: 1, Name: "Oolong Tea 250g"}, Batch: batch, Quantity: 10,
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), rec.Quantity)

	rec, err = ledger.StockIn(context.Background(), store, Movement{
		Product: ProductRef{ID: 1, Name: "Oolong Tea 250g"}, Batch: batch, Quantity: 5,
	})
	require.NoError(t, err)
	require.Equal(t, int64(15), rec.Quantity)
}

func TestStockOutRejectsInsufficient(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger()
	store.seed(1, 3, 4)
	batch := &BatchRef{ID: 3, Number: "PRD20240315001"}

	_, err := ledger.StockOut(context.Background(), store, Movement{
		Product: ProductRef{ID: 1, Name: "Oolong Tea 250g"}, Batch: batch, Quantity: 5,
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(5), insufficient.Requested)
	require.Equal(t, int64(4), insufficient.Available)
	require.Equal(t, int64(1), insufficient.Shortfall())

	// Balance untouched after the rejection.
	rec, err := ledger.StockOut(context.Background(), store, Movement{
		Product: ProductRef{ID: 1, Name: "Oolong Tea 250g"}, Batch: batch, Quantity: 4,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.Quantity)
}

func TestStockOutMissingRecordCountsAsZero(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger()

	_, err := ledger.StockOut(context.Background(), store, Movement{
		Product: ProductRef{ID: 9, Name: "Gift Bag"}, Quantity: 1,
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(0), insufficient.Available)
}

func TestMovementQuantityMustBePositive(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger()

	_, err := ledger.StockIn(context.Background(), store, Movement{
		Product: ProductRef{ID: 1}, Quantity: 0,
	})
	require.Error(t, err)

	_, err = ledger.StockOut(context.Background(), store, Movement{
		Product: ProductRef{ID: 1}, Quantity: -2,
	})
	require.Error(t, err)
}

func TestUnbatchedAndBatchedRecordsAreSeparate(t *testing.T) {
	store := newMemoryStore()
	ledger := NewLedger()
	product := ProductRef{ID: 1, Name: "Oolong Tea 250g"}

	_, err := ledger.StockIn(context.Background(), store, Movement{Product: product, Quantity: 7})
	require.NoError(t, err)
	rec, err := ledger.StockIn(context.Background(), store, Movement{
		Product: product, Batch: &BatchRef{ID: 3, Number: "PRD20240315001"}, Quantity: 2,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.Quantity)
}

func availability(batchID int64, number string, day int, qty int64) BatchAvailability {
	return BatchAvailability{
		RecordID:       batchID,
		Batch:          BatchRef{ID: batchID, Number: number},
		ProductionDate: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Quantity:       qty,
	}
}
