package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. Once BatchManaged is set every stock movement
// for the product must reference a batch; the flag cannot be cleared again.
type Product struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	DefaultSalePrice decimal.Decimal `json:"default_sale_price"`
	Deleted          bool            `json:"deleted"`
	Sort             int             `json:"sort"`
	CategoryID       int64           `json:"category_id"`
	BatchManaged     bool            `json:"batch_managed"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Category groups products for listing purposes.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Sort int    `json:"sort"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID     *int64
	Search         string
	IncludeDeleted bool
	BatchManaged   *bool
	Limit          int
	Offset         int
}

// CreateProductInput describes a new product.
type CreateProductInput struct {
	Name             string          `json:"name" validate:"required,max=50"`
	CostPrice        decimal.Decimal `json:"cost_price" validate:"required"`
	DefaultSalePrice decimal.Decimal `json:"default_sale_price" validate:"required"`
	Sort             int             `json:"sort" validate:"gte=0"`
	CategoryID       int64           `json:"category_id" validate:"required,gt=0"`
	BatchManaged     bool            `json:"batch_managed"`
}

// UpdateProductInput carries partial product updates.
type UpdateProductInput struct {
	Name             *string          `json:"name,omitempty" validate:"omitempty,max=50"`
	CostPrice        *decimal.Decimal `json:"cost_price,omitempty"`
	DefaultSalePrice *decimal.Decimal `json:"default_sale_price,omitempty"`
	Sort             *int             `json:"sort,omitempty" validate:"omitempty,gte=0"`
	CategoryID       *int64           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	BatchManaged     *bool            `json:"batch_managed,omitempty"`
}
