package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

const dateLayout = "2006-01-02"

// SaleLister is the slice of the repository the engine reads from.
type SaleLister interface {
	ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error)
}

// Engine builds the sales dashboard from the cached sale figures. Period
// boundaries are computed in loc.
type Engine struct {
	sales    SaleLister
	cache    cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewEngine(sales SaleLister, cacheStore cache.ReportCache, cacheTTL time.Duration, loc *time.Location) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Engine{
		sales:    sales,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		loc:      loc,
		now:      time.Now,
	}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) cacheKey() string {
	return fmt.Sprintf("report:dashboard:%s", e.loc.String())
}

// Invalidate drops the cached dashboard after a sale changed.
func (e *Engine) Invalidate(ctx context.Context) error {
	return e.cache.Delete(ctx, e.cacheKey())
}

func (e *Engine) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	key := e.cacheKey()
	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	sales, err := e.sales.ListSales(ctx, store.SaleFilter{})
	if err != nil {
		return nil, err
	}

	now := e.now().In(e.loc)
	b := PeriodBoundaries(now)
	dash := &domain.Dashboard{
		Today:          Summarize(since(sales, b.Today)),
		Weekly:         Summarize(since(sales, b.Week)),
		Monthly:        Summarize(since(sales, b.Month)),
		SixMonths:      Summarize(since(sales, b.SixMonths)),
		AllTime:        Summarize(sales),
		WeeklyStart:    b.Week.Format(dateLayout),
		MonthlyStart:   b.Month.Format(dateLayout),
		SixMonthsStart: b.SixMonths.Format(dateLayout),
		TodaySales:     recent(since(sales, b.Today), 5),
		GeneratedAt:    now,
	}

	_ = e.cache.Set(ctx, key, dash, e.cacheTTL)
	return dash, nil
}

// Boundaries are the first instants of the dashboard periods.
type Boundaries struct {
	Today     time.Time
	Week      time.Time
	Month     time.Time
	SixMonths time.Time
}

// PeriodBoundaries returns the start of today, of the week (Monday), of the
// month and of the half year (January 1 or July 1) in now's location.
func PeriodBoundaries(now time.Time) Boundaries {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	half := time.January
	if now.Month() > time.June {
		half = time.July
	}
	return Boundaries{
		Today:     today,
		Week:      today.AddDate(0, 0, -sinceMonday),
		Month:     time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc),
		SixMonths: time.Date(now.Year(), half, 1, 0, 0, 0, 0, loc),
	}
}

func Summarize(sales []domain.Sale) domain.PeriodSummary {
	out := domain.PeriodSummary{
		TotalSales:    len(sales),
		GrossSales:    decimal.Zero,
		TotalNet:      decimal.Zero,
		TotalProfit:   decimal.Zero,
		TotalReturned: decimal.Zero,
	}
	for _, s := range sales {
		out.GrossSales = out.GrossSales.Add(s.FinalAmount)
		out.TotalNet = out.TotalNet.Add(s.NetAmount)
		out.TotalProfit = out.TotalProfit.Add(s.TotalProfit)
		out.TotalReturned = out.TotalReturned.Add(s.ReturnedAmount)
	}
	return out
}

// ListTotals sums the net amount of sales that are not fully returned and the
// profit of all of them.
func ListTotals(sales []domain.Sale) (amount decimal.Decimal, profit decimal.Decimal) {
	amount, profit = decimal.Zero, decimal.Zero
	for _, s := range sales {
		if !s.IsFullyReturned() {
			amount = amount.Add(s.NetAmount)
		}
		profit = profit.Add(s.TotalProfit)
	}
	return amount, profit
}

func since(sales []domain.Sale, start time.Time) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if !s.SaleDate.Before(start) {
			out = append(out, s)
		}
	}
	return out
}

// recent assumes sales are ordered newest first, as the repository returns them.
func recent(sales []domain.Sale, n int) []domain.Sale {
	if len(sales) > n {
		return sales[:n]
	}
	return sales
}
