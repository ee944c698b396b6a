package shops

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop is a retail customer location. Orders bill against a shop and its
// outstanding arrears balance.
type Shop struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Location    string           `json:"location"`
	Pinyin      string           `json:"pinyin"`
	PriceRuleID int64            `json:"priceRuleId"`
	Arrears     decimal.Decimal  `json:"arrears"`
	Longitude   *decimal.Decimal `json:"longitude,omitempty"`
	Latitude    *decimal.Decimal `json:"latitude,omitempty"`
	Slow        bool             `json:"slow"`
	Deleted     bool             `json:"deleted"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// PriceRule is a named price list assigned to shops.
type PriceRule struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Deleted bool   `json:"deleted"`
}

// PriceRuleItem sets one product's price under a rule. DefaultPrice marks
// items that still track the product's default sale price.
type PriceRuleItem struct {
	ID           int64           `json:"id"`
	RuleID       int64           `json:"ruleId"`
	ProductID    int64           `json:"productId"`
	Price        decimal.Decimal `json:"price"`
	DefaultPrice bool            `json:"defaultPrice"`
}

// ShopFilter narrows shop listings.
type ShopFilter struct {
	Search         string
	Slow           *bool
	IncludeDeleted bool
}

// CreateShopInput is the payload for registering a shop.
type CreateShopInput struct {
	Name        string           `json:"name" validate:"required,max=20"`
	Location    string           `json:"location" validate:"required,max=20"`
	Pinyin      string           `json:"pinyin" validate:"required,len=1"`
	PriceRuleID int64            `json:"priceRuleId" validate:"required,gt=0"`
	Longitude   *decimal.Decimal `json:"longitude"`
	Latitude    *decimal.Decimal `json:"latitude"`
}

// UpdateShopInput carries partial shop updates.
type UpdateShopInput struct {
	Name        *string          `json:"name" validate:"omitempty,max=20"`
	Location    *string          `json:"location" validate:"omitempty,max=20"`
	PriceRuleID *int64           `json:"priceRuleId" validate:"omitempty,gt=0"`
	Longitude   *decimal.Decimal `json:"longitude"`
	Latitude    *decimal.Decimal `json:"latitude"`
	Slow        *bool            `json:"slow"`
}
