package statistics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	totals   []DayTotals
	products []ProductDaySales
	calls    int
}

func (m *memoryRepo) DailyOrderTotals(_ context.Context, from, to time.Time) ([]DayTotals, error) {
	m.calls++
	out := []DayTotals{}
	for _, t := range m.totals {
		if !t.Day.Before(from) && t.Day.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepo) DailyProductSales(_ context.Context, from, to time.Time) ([]ProductDaySales, error) {
	out := []ProductDaySales{}
	for _, p := range m.products {
		if !p.Day.Before(from) && p.Day.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type productPort []catalog.Product

func (p productPort) ListProducts(_ context.Context, _ catalog.ProductFilter) ([]catalog.Product, int, error) {
	return p, len(p), nil
}

type stockPort map[int64]int64

func (s stockPort) GetProductStock(_ context.Context, productID int64) (inventory.ProductStockSummary, error) {
	return inventory.ProductStockSummary{ProductID: productID, TotalQuantity: s[productID]}, nil
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) (*Service, *memoryRepo, stockPort, *productPort) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	repo := &memoryRepo{}
	stock := stockPort{}
	products := productPort{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, &products, stock, cache, logger)
	svc.now = func() time.Time { return day(11) }
	return svc, repo, stock, &products
}

func seedSales(repo *memoryRepo, d int, productID int64, name string, qty int64, sales, profit string) {
	repo.products = append(repo.products, ProductDaySales{
		Day: day(d), ProductID: productID, ProductName: name, Quantity: qty,
		SalesAmount: decimal.RequireFromString(sales), Profit: decimal.RequireFromString(profit),
	})
	for i := range repo.totals {
		if repo.totals[i].Day.Equal(day(d)) {
			repo.totals[i].OrderCount++
			repo.totals[i].SalesAmount = repo.totals[i].SalesAmount.Add(decimal.RequireFromString(sales))
			repo.totals[i].Profit = repo.totals[i].Profit.Add(decimal.RequireFromString(profit))
			return
		}
	}
	repo.totals = append(repo.totals, DayTotals{
		Day: day(d), OrderCount: 1,
		SalesAmount: decimal.RequireFromString(sales), Profit: decimal.RequireFromString(profit),
	})
}

func TestDailyStatisticsFillsEmptyDays(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	seedSales(repo, 2, 1, "Oolong Tea 250g", 4, "48.00", "16.00")

	stats, err := svc.DailyStatistics(context.Background(), day(1), day(3))
	require.NoError(t, err)
	require.Len(t, stats, 3)
	require.Equal(t, "2024-03-01", stats[0].Date)
	require.Equal(t, int64(0), stats[0].OrderCount)
	require.Equal(t, int64(1), stats[1].OrderCount)
	require.Equal(t, int64(4), stats[1].Quantity)
	require.True(t, stats[1].SalesAmount.Equal(decimal.RequireFromString("48.00")))
	require.Equal(t, int64(0), stats[2].OrderCount)
}

func TestDailyStatisticsServedFromCache(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	seedSales(repo, 2, 1, "Oolong Tea 250g", 4, "48.00", "16.00")

	_, err := svc.DailyStatistics(context.Background(), day(1), day(3))
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	_, err = svc.DailyStatistics(context.Background(), day(1), day(3))
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	// A version bump forces a reload.
	require.NoError(t, svc.InvalidateCache(context.Background()))
	_, err = svc.DailyStatistics(context.Background(), day(1), day(3))
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestRangeStatisticsAggregatesProducts(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	seedSales(repo, 1, 1, "Oolong Tea 250g", 2, "24.00", "8.00")
	seedSales(repo, 2, 1, "Oolong Tea 250g", 3, "36.00", "12.00")
	seedSales(repo, 2, 2, "Gift Bag", 5, "10.00", "5.00")

	stat, err := svc.RangeStatistics(context.Background(), day(1), day(2))
	require.NoError(t, err)
	require.Equal(t, int64(3), stat.OrderCount)
	require.Equal(t, int64(10), stat.Quantity)
	require.True(t, stat.SalesAmount.Equal(decimal.RequireFromString("70.00")))
	require.Len(t, stat.Products, 2)
	require.Equal(t, int64(5), stat.Products[0].Quantity)
}

func TestOverallTrendMovingAverage(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	seedSales(repo, 1, 1, "Oolong Tea 250g", 1, "10.00", "2.00")
	seedSales(repo, 2, 1, "Oolong Tea 250g", 1, "20.00", "4.00")
	seedSales(repo, 3, 1, "Oolong Tea 250g", 1, "30.00", "6.00")

	line, err := svc.OverallTrend(context.Background(), 2, day(1), day(3))
	require.NoError(t, err)
	require.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, line.Dates)
	require.Len(t, line.Series, 2)

	revenue := line.Series[0]
	require.Equal(t, "revenue", revenue.Name)
	require.Nil(t, revenue.Data[0])
	require.InDelta(t, 15.0, *revenue.Data[1], 0.001)
	require.InDelta(t, 25.0, *revenue.Data[2], 0.001)
}

func TestOverallTrendRejectsShortRange(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	seedSales(repo, 1, 1, "Oolong Tea 250g", 1, "10.00", "2.00")

	_, err := svc.OverallTrend(context.Background(), 7, day(1), day(2))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProductMovingAverageByMetric(t *testing.T) {
	svc, repo, _, _ := newFixture(t)
	seedSales(repo, 1, 1, "Oolong Tea 250g", 2, "24.00", "8.00")
	seedSales(repo, 2, 1, "Oolong Tea 250g", 4, "48.00", "16.00")

	line, err := svc.ProductMovingAverage(context.Background(), []int64{1}, MetricQuantity, 2, day(1), day(2))
	require.NoError(t, err)
	require.Len(t, line.Series, 1)
	require.Equal(t, "Oolong Tea 250g", line.Series[0].Name)
	require.InDelta(t, 3.0, *line.Series[0].Data[1], 0.001)
}

func TestParseMetricIsClosed(t *testing.T) {
	for _, ok := range []string{"quantity", "salesAmount", "profit"} {
		_, err := ParseMetric(ok)
		require.NoError(t, err)
	}
	_, err := ParseMetric("margin")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPurchaseSuggestions(t *testing.T) {
	svc, repo, stock, products := newFixture(t)
	*products = productPort{
		{ID: 1, Name: "Oolong Tea 250g", BatchManaged: true},
		{ID: 2, Name: "Gift Bag"},
	}
	// 30 units sold over the 10 analyzed days, so 3 per day.
	for d := 1; d <= 10; d++ {
		seedSales(repo, d, 1, "Oolong Tea 250g", 3, "36.00", "12.00")
	}
	stock[1] = 10
	stock[2] = 100

	suggestions, err := svc.PurchaseSuggestions(context.Background(), 10, 7, 14)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	require.Equal(t, int64(1), s.ProductID)
	require.InDelta(t, 3.0, s.DailyAverageSales, 0.001)
	// lead demand 21 + safety stock 42 - on hand 10
	require.Equal(t, int64(53), s.SuggestedQuantity)
}

func TestPurchaseSuggestionsSkipWellStocked(t *testing.T) {
	svc, repo, stock, products := newFixture(t)
	*products = productPort{{ID: 1, Name: "Oolong Tea 250g"}}
	for d := 1; d <= 10; d++ {
		seedSales(repo, d, 1, "Oolong Tea 250g", 1, "12.00", "4.00")
	}
	stock[1] = 500

	suggestions, err := svc.PurchaseSuggestions(context.Background(), 10, 7, 14)
	require.NoError(t, err)
	require.Empty(t, suggestions)
}
