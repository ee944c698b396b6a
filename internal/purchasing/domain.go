package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseState tracks where a purchase document sits in the intake flow.
type PurchaseState string

const (
	// StateOrdered means the document exists but no stock has arrived.
	StateOrdered PurchaseState = "ORDERED"
	// StateStockedIn means batches were created and quantities booked in.
	StateStockedIn PurchaseState = "STOCKED_IN"
)

// Purchase is a supplier order. TotalAmount is the sum of its detail
// amounts; InTime is set when the goods are received.
type Purchase struct {
	ID          int64            `json:"id"`
	State       PurchaseState    `json:"state"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
	CreatedAt   time.Time        `json:"createdAt"`
	InTime      *time.Time       `json:"inTime,omitempty"`
	Details     []PurchaseDetail `json:"details"`
}

// PurchaseDetail is one product line. For batch-managed products the
// production and expiration dates arrive with the order and the batch link
// is filled at receive time.
type PurchaseDetail struct {
	ID             int64           `json:"id"`
	PurchaseID     int64           `json:"purchaseId"`
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	Quantity       int64           `json:"quantity"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	ProductionDate *time.Time      `json:"productionDate,omitempty"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
	BatchID        *int64          `json:"batchId,omitempty"`
	BatchNumber    string          `json:"batchNumber,omitempty"`
}

// PurchaseDetailInput is one requested line.
type PurchaseDetailInput struct {
	ProductID      int64           `json:"productId" validate:"required,gt=0"`
	Quantity       int64           `json:"quantity" validate:"required,gt=0"`
	TotalAmount    decimal.Decimal `json:"totalAmount" validate:"required"`
	ProductionDate *time.Time      `json:"productionDate"`
	ExpirationDate *time.Time      `json:"expirationDate"`
}

// CreatePurchaseInput is the payload for placing a purchase order.
// ReceiveNow books the stock in the same transaction as the document.
type CreatePurchaseInput struct {
	Details        []PurchaseDetailInput `json:"details" validate:"required,min=1,dive"`
	ReceiveNow     bool                  `json:"receiveNow"`
	IdempotencyKey string                `json:"-"`
	ActorID        int64                 `json:"-"`
}

// ListFilter narrows purchase listings.
type ListFilter struct {
	State  PurchaseState
	Limit  int
	Offset int
}
