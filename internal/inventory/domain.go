package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Record is the quantity-on-hand counter for one (product, batch-or-none)
// key. BatchID nil denotes the non-batch pool of the product. Records are
// created lazily on first movement and never deleted; quantity never drops
// below zero.
type Record struct {
	ID        int64
	ProductID int64
	BatchID   *int64
	Quantity  int64
	UpdatedAt time.Time
}

// ProductRef identifies a product in movements and error messages.
type ProductRef struct {
	ID   int64
	Name string
}

// BatchRef identifies a batch in movements and error messages.
type BatchRef struct {
	ID     int64
	Number string
}

// Movement describes one stock-in or stock-out against a single key.
type Movement struct {
	Product  ProductRef
	Batch    *BatchRef
	Quantity int64
}

// BatchAvailability is one allocatable inventory row, joined to its batch.
type BatchAvailability struct {
	RecordID       int64
	Batch          BatchRef
	ProductionDate time.Time
	Quantity       int64
}

// Allocation assigns part of a requirement to one batch.
type Allocation struct {
	Batch    BatchRef `json:"batch"`
	Quantity int64    `json:"quantity"`
}

// BatchStock is the per-batch slice of a product stock summary.
type BatchStock struct {
	BatchID        int64     `json:"batch_id"`
	BatchNumber    string    `json:"batch_number"`
	Quantity       int64     `json:"quantity"`
	ProductionDate time.Time `json:"production_date"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// ProductStockSummary aggregates a product's total quantity across all keys
// plus the per-batch breakdown.
type ProductStockSummary struct {
	ProductID     int64        `json:"product_id"`
	TotalQuantity int64        `json:"total_quantity"`
	Batches       []BatchStock `json:"batches,omitempty"`
}

// InsufficientStockError reports demand exceeding available quantity. It
// wraps shared.ErrInsufficientStock so callers can branch with errors.Is
// while keeping the shortfall details.
type InsufficientStockError struct {
	Product     ProductRef
	BatchNumber string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	if e.BatchNumber != "" {
		return fmt.Sprintf("insufficient stock: product %q batch %s has %d, need %d", e.Product.Name, e.BatchNumber, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock: product %q has %d, need %d", e.Product.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return shared.ErrInsufficientStock }

// Shortfall is the quantity that could not be covered.
func (e *InsufficientStockError) Shortfall() int64 { return e.Requested - e.Available }

// ErrRecordNotFound indicates a missing inventory row inside a transaction.
var ErrRecordNotFound = errors.New("inventory record not found")
