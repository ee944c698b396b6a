package batches

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a dated lot of a single product with its own cost and expiration,
// tracked as an independent inventory pool. A batch belongs to exactly one
// product; disabling a batch removes it from FIFO allocation but keeps its
// inventory record.
type Batch struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	BatchNumber    string          `json:"batch_number"`
	ProductionDate time.Time       `json:"production_date"`
	ExpirationDate time.Time       `json:"expiration_date"`
	PurchaseLineID *int64          `json:"purchase_line_id,omitempty"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	Status         bool            `json:"status"`
	Remark         string          `json:"remark,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PurchaseLine carries what batch creation needs from the originating
// purchase line: the cost price derives from total amount over quantity.
type PurchaseLine struct {
	ID          int64
	Quantity    int64
	TotalAmount decimal.Decimal
}

// ListFilter narrows batch listings.
type ListFilter struct {
	ProductID int64
	Status    *bool
}
