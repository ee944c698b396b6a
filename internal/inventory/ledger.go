package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Store exposes the transactional inventory operations the ledger needs.
// Implementations wrap one open transaction; embedding Store into a module's
// TxRepository lets a document insert and its stock mutations share a single
// commit.
type Store interface {
	// GetRecordForUpdate locks the (product, batch) row for the remainder of
	// the transaction. Returns ErrRecordNotFound when no row exists yet.
	GetRecordForUpdate(ctx context.Context, productID int64, batchID *int64) (Record, error)
	InsertRecord(ctx context.Context, rec Record) (int64, error)
	UpdateRecordQuantity(ctx context.Context, recordID, quantity int64) error
	// ListAvailable returns rows with quantity > 0 joined to enabled batches,
	// ordered by production date ascending then batch id.
	ListAvailable(ctx context.Context, productID int64) ([]BatchAvailability, error)
}

// Ledger owns quantity-on-hand movements. All methods run against a Store
// bound to the caller's transaction, so the sufficiency check and the
// decrement commit or roll back together with the enclosing document.
type Ledger struct{}

// NewLedger builds Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// FindOrCreate returns the record for the (product, batch) key, creating it
// with quantity 0 on first use. The returned record is locked for update.
func (l *Ledger) FindOrCreate(ctx context.Context, store Store, product ProductRef, batch *BatchRef) (Record, error) {
	rec, err := store.GetRecordForUpdate(ctx, product.ID, batchID(batch))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return Record{}, err
	}
	rec = Record{ProductID: product.ID, BatchID: batchID(batch)}
	id, err := store.InsertRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	return rec, nil
}

// StockIn atomically increments the record's quantity. There is no upper
// bound check.
func (l *Ledger) StockIn(ctx context.Context, store Store, mv Movement) (Record, error) {
	if mv.Quantity <= 0 {
		return Record{}, fmt.Errorf("%w: stock-in quantity must be positive", shared.ErrValidation)
	}
	rec, err := l.FindOrCreate(ctx, store, mv.Product, mv.Batch)
	if err != nil {
		return Record{}, err
	}
	rec.Quantity += mv.Quantity
	if err := store.UpdateRecordQuantity(ctx, rec.ID, rec.Quantity); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// StockOut atomically decrements the record's quantity. The sufficiency check
// runs against the row locked by GetRecordForUpdate, so two concurrent
// stock-outs on the same key serialize and cannot drive the quantity
// negative. A missing record counts as zero available.
func (l *Ledger) StockOut(ctx context.Context, store Store, mv Movement) (Record, error) {
	if mv.Quantity <= 0 {
		return Record{}, fmt.Errorf("%w: stock-out quantity must be positive", shared.ErrValidation)
	}
	rec, err := store.GetRecordForUpdate(ctx, mv.Product.ID, batchID(mv.Batch))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Record{}, &InsufficientStockError{Product: mv.Product, BatchNumber: batchNumber(mv.Batch), Requested: mv.Quantity}
		}
		return Record{}, err
	}
	if rec.Quantity < mv.Quantity {
		return Record{}, &InsufficientStockError{Product: mv.Product, BatchNumber: batchNumber(mv.Batch), Requested: mv.Quantity, Available: rec.Quantity}
	}
	rec.Quantity -= mv.Quantity
	if err := store.UpdateRecordQuantity(ctx, rec.ID, rec.Quantity); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func batchID(batch *BatchRef) *int64 {
	if batch == nil {
		return nil
	}
	return &batch.ID
}

func batchNumber(batch *BatchRef) string {
	if batch == nil {
		return ""
	}
	return batch.Number
}
