package statistics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ProductSales aggregates one product's sales inside a period.
type ProductSales struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	SalesAmount decimal.Decimal `json:"salesAmount"`
	Profit      decimal.Decimal `json:"profit"`
}

// DailyStat is the sales summary of one calendar day. Days without orders
// appear with zero values so chart ranges stay continuous.
type DailyStat struct {
	Date        string          `json:"date"`
	OrderCount  int64           `json:"orderCount"`
	SalesAmount decimal.Decimal `json:"salesAmount"`
	Profit      decimal.Decimal `json:"profit"`
	Quantity    int64           `json:"quantity"`
	Products    []ProductSales  `json:"products,omitempty"`
}

// RangeStat is the rollup over a whole date range.
type RangeStat struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	OrderCount  int64           `json:"orderCount"`
	SalesAmount decimal.Decimal `json:"salesAmount"`
	Profit      decimal.Decimal `json:"profit"`
	Quantity    int64           `json:"quantity"`
	Products    []ProductSales  `json:"products"`
}

// Metric selects which figure a moving average tracks.
type Metric string

const (
	MetricQuantity    Metric = "quantity"
	MetricSalesAmount Metric = "salesAmount"
	MetricProfit      Metric = "profit"
)

// ParseMetric validates the metric name. The set is closed.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricQuantity, MetricSalesAmount, MetricProfit:
		return Metric(s), nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", shared.ErrValidation, s)
}

func (m Metric) extract(p ProductSales) float64 {
	switch m {
	case MetricQuantity:
		return float64(p.Quantity)
	case MetricSalesAmount:
		return p.SalesAmount.InexactFloat64()
	default:
		return p.Profit.InexactFloat64()
	}
}

// Series is one named moving-average line. Entries before the window fills
// are nil.
type Series struct {
	Name string     `json:"name"`
	Data []*float64 `json:"data"`
}

// MovingAverageLine is a chartable set of moving-average series over a
// shared date axis.
type MovingAverageLine struct {
	Dates  []string `json:"dates"`
	Series []Series `json:"series"`
}

// Suggestion recommends a purchase quantity for one product.
type Suggestion struct {
	ProductID         int64   `json:"productId"`
	ProductName       string  `json:"productName"`
	CurrentStock      int64   `json:"currentStock"`
	DailyAverageSales float64 `json:"dailyAverageSales"`
	SuggestedQuantity int64   `json:"suggestedQuantity"`
}

// DayTotals is the per-day order rollup as read from storage.
type DayTotals struct {
	Day         time.Time
	OrderCount  int64
	SalesAmount decimal.Decimal
	Profit      decimal.Decimal
}

// ProductDaySales is the per-day per-product rollup as read from storage.
type ProductDaySales struct {
	Day         time.Time
	ProductID   int64
	ProductName string
	Quantity    int64
	SalesAmount decimal.Decimal
	Profit      decimal.Decimal
}
