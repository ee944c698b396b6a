package statistics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const dateLayout = "2006-01-02"

// RepositoryPort abstracts the sales rollup queries.
type RepositoryPort interface {
	DailyOrderTotals(ctx context.Context, from, to time.Time) ([]DayTotals, error)
	DailyProductSales(ctx context.Context, from, to time.Time) ([]ProductDaySales, error)
}

// ProductPort lists sellable products for suggestions.
type ProductPort interface {
	ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int, error)
}

// StockPort reads current stock levels.
type StockPort interface {
	GetProductStock(ctx context.Context, productID int64) (inventory.ProductStockSummary, error)
}

// Service computes sales statistics, moving averages and purchase
// suggestions, with Redis-backed caching in front of the heavier queries.
type Service struct {
	repo     RepositoryPort
	products ProductPort
	stock    StockPort
	cache    *Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductPort, stock StockPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		products: products,
		stock:    stock,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DailyStatistics returns one entry per calendar day in [from, to], zeros
// included for days without orders.
func (s *Service) DailyStatistics(ctx context.Context, from, to time.Time) ([]DailyStat, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: date range end precedes start", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, keyDaily(from.Format(dateLayout), to.Format(dateLayout)))
	if err != nil {
		return nil, err
	}
	var stats []DailyStat
	err = s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (interface{}, error) {
		return s.loadDaily(ctx, from, to)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) loadDaily(ctx context.Context, from, to time.Time) ([]DailyStat, error) {
	from = from.Truncate(24 * time.Hour)
	end := to.Truncate(24 * time.Hour).AddDate(0, 0, 1)

	totals, err := s.repo.DailyOrderTotals(ctx, from, end)
	if err != nil {
		return nil, err
	}
	productRows, err := s.repo.DailyProductSales(ctx, from, end)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailyStat)
	order := []string{}
	for day := from; day.Before(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(dateLayout)
		byDay[date] = &DailyStat{Date: date, SalesAmount: decimal.Zero, Profit: decimal.Zero}
		order = append(order, date)
	}
	for _, t := range totals {
		if stat, ok := byDay[t.Day.Format(dateLayout)]; ok {
			stat.OrderCount = t.OrderCount
			stat.SalesAmount = t.SalesAmount
			stat.Profit = t.Profit
		}
	}
	for _, p := range productRows {
		stat, ok := byDay[p.Day.Format(dateLayout)]
		if !ok {
			continue
		}
		stat.Quantity += p.Quantity
		stat.Products = append(stat.Products, ProductSales{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			SalesAmount: p.SalesAmount,
			Profit:      p.Profit,
		})
	}

	out := make([]DailyStat, 0, len(order))
	for _, date := range order {
		out = append(out, *byDay[date])
	}
	return out, nil
}

// RangeStatistics rolls the whole period up into one summary with per-product
// totals.
func (s *Service) RangeStatistics(ctx context.Context, from, to time.Time) (RangeStat, error) {
	daily, err := s.DailyStatistics(ctx, from, to)
	if err != nil {
		return RangeStat{}, err
	}
	result := RangeStat{
		From:        from.Format(dateLayout),
		To:          to.Format(dateLayout),
		SalesAmount: decimal.Zero,
		Profit:      decimal.Zero,
	}
	perProduct := map[int64]*ProductSales{}
	for _, day := range daily {
		result.OrderCount += day.OrderCount
		result.SalesAmount = result.SalesAmount.Add(day.SalesAmount)
		result.Profit = result.Profit.Add(day.Profit)
		result.Quantity += day.Quantity
		for _, p := range day.Products {
			agg, ok := perProduct[p.ProductID]
			if !ok {
				agg = &ProductSales{ProductID: p.ProductID, ProductName: p.ProductName,
					SalesAmount: decimal.Zero, Profit: decimal.Zero}
				perProduct[p.ProductID] = agg
			}
			agg.Quantity += p.Quantity
			agg.SalesAmount = agg.SalesAmount.Add(p.SalesAmount)
			agg.Profit = agg.Profit.Add(p.Profit)
		}
	}
	result.Products = make([]ProductSales, 0, len(perProduct))
	for _, agg := range perProduct {
		result.Products = append(result.Products, *agg)
	}
	sort.Slice(result.Products, func(i, j int) bool {
		return result.Products[i].ProductID < result.Products[j].ProductID
	})
	return result, nil
}

// OverallTrend computes simple moving averages of daily revenue and profit
// over the range.
func (s *Service) OverallTrend(ctx context.Context, period int, from, to time.Time) (MovingAverageLine, error) {
	if period <= 0 {
		return MovingAverageLine{}, fmt.Errorf("%w: period must be positive", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, keyTrend(period, from.Format(dateLayout), to.Format(dateLayout)))
	if err != nil {
		return MovingAverageLine{}, err
	}
	var line MovingAverageLine
	err = s.cache.FetchJSON(ctx, key, &line, func(ctx context.Context) (interface{}, error) {
		daily, err := s.loadDaily(ctx, from, to)
		if err != nil {
			return nil, err
		}
		if len(daily) < period {
			return nil, fmt.Errorf("%w: need at least %d days for the window", shared.ErrValidation, period)
		}
		dates := make([]string, len(daily))
		revenue := make([]float64, len(daily))
		profit := make([]float64, len(daily))
		for i, day := range daily {
			dates[i] = day.Date
			revenue[i] = day.SalesAmount.InexactFloat64()
			profit[i] = day.Profit.InexactFloat64()
		}
		return MovingAverageLine{
			Dates: dates,
			Series: []Series{
				{Name: "revenue", Data: simpleMovingAverage(revenue, period)},
				{Name: "profit", Data: simpleMovingAverage(profit, period)},
			},
		}, nil
	})
	if err != nil {
		return MovingAverageLine{}, err
	}
	return line, nil
}

// ProductMovingAverage computes one moving-average series per product for the
// chosen metric.
func (s *Service) ProductMovingAverage(ctx context.Context, productIDs []int64, metric Metric, period int, from, to time.Time) (MovingAverageLine, error) {
	if period <= 0 {
		return MovingAverageLine{}, fmt.Errorf("%w: period must be positive", shared.ErrValidation)
	}
	if len(productIDs) == 0 {
		return MovingAverageLine{}, fmt.Errorf("%w: at least one product required", shared.ErrValidation)
	}
	daily, err := s.DailyStatistics(ctx, from, to)
	if err != nil {
		return MovingAverageLine{}, err
	}
	if len(daily) < period {
		return MovingAverageLine{}, fmt.Errorf("%w: need at least %d days for the window", shared.ErrValidation, period)
	}

	line := MovingAverageLine{Dates: make([]string, len(daily))}
	for i, day := range daily {
		line.Dates[i] = day.Date
	}
	for _, productID := range productIDs {
		values := make([]float64, len(daily))
		name := ""
		for i, day := range daily {
			for _, p := range day.Products {
				if p.ProductID == productID {
					values[i] = metric.extract(p)
					name = p.ProductName
					break
				}
			}
		}
		if name == "" {
			name = fmt.Sprintf("product %d", productID)
		}
		line.Series = append(line.Series, Series{Name: name, Data: simpleMovingAverage(values, period)})
	}
	return line, nil
}

// PurchaseSuggestions recommends order quantities from recent daily sales,
// current stock, the supplier lead time and a safety stock buffer.
func (s *Service) PurchaseSuggestions(ctx context.Context, daysToAnalyze, leadTimeDays, safetyStockDays int) ([]Suggestion, error) {
	if daysToAnalyze <= 0 || leadTimeDays <= 0 || safetyStockDays < 0 {
		return nil, fmt.Errorf("%w: invalid suggestion window", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, keySuggestions(daysToAnalyze, leadTimeDays, safetyStockDays))
	if err != nil {
		return nil, err
	}
	var suggestions []Suggestion
	err = s.cache.FetchJSON(ctx, key, &suggestions, func(ctx context.Context) (interface{}, error) {
		return s.loadSuggestions(ctx, daysToAnalyze, leadTimeDays, safetyStockDays)
	})
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (s *Service) loadSuggestions(ctx context.Context, daysToAnalyze, leadTimeDays, safetyStockDays int) ([]Suggestion, error) {
	end := s.now().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -daysToAnalyze)
	daily, err := s.loadDaily(ctx, start, end.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}

	soldPerProduct := map[int64]int64{}
	for _, day := range daily {
		for _, p := range day.Products {
			soldPerProduct[p.ProductID] += p.Quantity
		}
	}

	products, _, err := s.products.ListProducts(ctx, catalog.ProductFilter{})
	if err != nil {
		return nil, err
	}

	suggestions := []Suggestion{}
	for _, product := range products {
		dailyAvg := float64(soldPerProduct[product.ID]) / float64(daysToAnalyze)
		safetyStock := int64(math.Ceil(dailyAvg * float64(safetyStockDays)))
		leadDemand := int64(math.Ceil(dailyAvg * float64(leadTimeDays)))

		summary, err := s.stock.GetProductStock(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		current := summary.TotalQuantity

		reorderPoint := leadDemand + safetyStock
		if current > reorderPoint {
			continue
		}
		suggested := leadDemand + safetyStock - current
		if suggested <= 0 {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			ProductID:         product.ID,
			ProductName:       product.Name,
			CurrentStock:      current,
			DailyAverageSales: dailyAvg,
			SuggestedQuantity: suggested,
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].ProductID < suggestions[j].ProductID
	})
	return suggestions, nil
}

// InvalidateCache bumps the cache version after order or purchase churn.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// simpleMovingAverage returns the trailing window average per position; the
// first period-1 entries have no full window and stay nil.
func simpleMovingAverage(values []float64, period int) []*float64 {
	out := make([]*float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			avg := sum / float64(period)
			out[i] = &avg
		}
	}
	return out
}
