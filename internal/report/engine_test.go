package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

type fakeSales struct {
	sales []domain.Sale
	calls int
}

func (f *fakeSales) ListSales(_ context.Context, _ store.SaleFilter) ([]domain.Sale, error) {
	f.calls++
	return f.sales, nil
}

type memoryReportCache struct {
	items map[string]*domain.Dashboard
}

func (c *memoryReportCache) Get(_ context.Context, key string) (*domain.Dashboard, bool, error) {
	d, ok := c.items[key]
	return d, ok, nil
}

func (c *memoryReportCache) Set(_ context.Context, key string, value *domain.Dashboard, _ time.Duration) error {
	c.items[key] = value
	return nil
}

func (c *memoryReportCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

var _ cache.ReportCache = (*memoryReportCache)(nil)

func sale(at time.Time, final, net, profit, returned int64) domain.Sale {
	return domain.Sale{
		ID:             at.Format(time.RFC3339),
		SaleDate:       at,
		FinalAmount:    decimal.NewFromInt(final),
		NetAmount:      decimal.NewFromInt(net),
		TotalProfit:    decimal.NewFromInt(profit),
		ReturnedAmount: decimal.NewFromInt(returned),
	}
}

func TestPeriodBoundaries(t *testing.T) {
	// Thursday
	now := time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)
	b := PeriodBoundaries(now)

	if !b.Today.Equal(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected today start %s", b.Today)
	}
	if !b.Week.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected Monday Oct 12, got %s", b.Week)
	}
	if !b.Month.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month start %s", b.Month)
	}
	if !b.SixMonths.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected July 1, got %s", b.SixMonths)
	}

	sunday := PeriodBoundaries(time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC))
	if !sunday.Week.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected Monday Mar 2 for a Sunday, got %s", sunday.Week)
	}
	if !sunday.SixMonths.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected Jan 1, got %s", sunday.SixMonths)
	}
}

func TestDashboardAggregatesAndCaches(t *testing.T) {
	now := time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)
	src := &fakeSales{sales: []domain.Sale{
		sale(now.Add(-time.Hour), 300, 300, 120, 0),
		sale(now.AddDate(0, 0, -2), 280, 200, 80, 100),
		sale(now.AddDate(0, -1, 0), 100, 100, 40, 0),
		sale(now.AddDate(-1, 0, 0), 50, 50, 10, 0),
	}}
	rc := &memoryReportCache{items: map[string]*domain.Dashboard{}}
	engine := NewEngine(src, rc, time.Minute, time.UTC)
	engine.now = func() time.Time { return now }

	dash, err := engine.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Today.TotalSales != 1 || !dash.Today.GrossSales.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected today summary: %+v", dash.Today)
	}
	if dash.Weekly.TotalSales != 2 || !dash.Weekly.TotalReturned.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected weekly summary: %+v", dash.Weekly)
	}
	if dash.SixMonths.TotalSales != 3 || dash.AllTime.TotalSales != 4 {
		t.Fatalf("unexpected period counts: six=%d all=%d", dash.SixMonths.TotalSales, dash.AllTime.TotalSales)
	}
	if !dash.AllTime.TotalProfit.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected all time profit 250, got %s", dash.AllTime.TotalProfit)
	}
	if len(dash.TodaySales) != 1 || dash.WeeklyStart != "2026-10-12" {
		t.Fatalf("unexpected dashboard detail: %+v", dash)
	}

	if _, err := engine.Dashboard(context.Background()); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected cached dashboard, repository called %d times", src.calls)
	}

	_ = engine.Invalidate(context.Background())
	if _, err := engine.Dashboard(context.Background()); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected reload after invalidate, repository called %d times", src.calls)
	}
}

func TestListTotalsSkipsFullyReturnedSales(t *testing.T) {
	now := time.Now()
	full := sale(now, 280, 20, 0, 300)
	partial := sale(now, 300, 200, 80, 100)

	amount, profit := ListTotals([]domain.Sale{full, partial})
	if !amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected amount 200, got %s", amount)
	}
	if !profit.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected profit 80, got %s", profit)
	}
}
