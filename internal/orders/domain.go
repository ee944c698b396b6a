package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a sales document billed to a shop. Totals are computed from the
// details at creation time and never recomputed afterwards.
type Order struct {
	ID               int64           `json:"id"`
	ShopID           int64           `json:"shopId"`
	TotalSalesAmount decimal.Decimal `json:"totalSalesAmount"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
	CreatedAt        time.Time       `json:"createdAt"`
	Details          []OrderDetail   `json:"details"`
}

// OrderDetail is one product line on an order. CostPrice and SalePrice are
// captured at sale time so later catalog edits do not rewrite history.
type OrderDetail struct {
	ID               int64             `json:"id"`
	OrderID          int64             `json:"orderId"`
	ProductID        int64             `json:"productId"`
	ProductName      string            `json:"productName"`
	Quantity         int64             `json:"quantity"`
	CostPrice        decimal.Decimal   `json:"costPrice"`
	SalePrice        decimal.Decimal   `json:"salePrice"`
	DefaultPrice     bool              `json:"defaultPrice"`
	TotalSalesAmount decimal.Decimal   `json:"totalSalesAmount"`
	TotalProfit      decimal.Decimal   `json:"totalProfit"`
	BatchDetails     []SaleBatchDetail `json:"batchDetails,omitempty"`
}

// SaleBatchDetail records which batch served part of a detail line.
type SaleBatchDetail struct {
	ID            int64           `json:"id"`
	OrderDetailID int64           `json:"orderDetailId"`
	BatchID       int64           `json:"batchId"`
	BatchNumber   string          `json:"batchNumber"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
}

// BatchSaleInput pins part of an item to a specific batch.
type BatchSaleInput struct {
	BatchID  int64 `json:"batchId" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

// OrderItemInput is one requested product line. A nil Price means the shop's
// price rule decides, falling back to the product's default sale price. Empty
// BatchDetails on a batch-managed product triggers FIFO allocation.
type OrderItemInput struct {
	ProductID    int64            `json:"productId" validate:"required,gt=0"`
	Quantity     int64            `json:"quantity" validate:"required,gt=0"`
	Price        *decimal.Decimal `json:"price"`
	BatchDetails []BatchSaleInput `json:"batchDetails" validate:"dive"`
}

// CreateOrderInput is the payload for creating an order.
type CreateOrderInput struct {
	ShopID         int64            `json:"shopId" validate:"required,gt=0"`
	Items          []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string           `json:"-"`
	ActorID        int64            `json:"-"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	ShopID int64
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

func (d *OrderDetail) computeTotals() {
	qty := decimal.NewFromInt(d.Quantity)
	d.TotalSalesAmount = d.SalePrice.Mul(qty)
	d.TotalProfit = d.TotalSalesAmount.Sub(d.CostPrice.Mul(qty))
}

func (o *Order) computeTotals() {
	total := decimal.Zero
	profit := decimal.Zero
	for _, d := range o.Details {
		total = total.Add(d.TotalSalesAmount)
		profit = profit.Add(d.TotalProfit)
	}
	o.TotalSalesAmount = total
	o.TotalProfit = profit
}
