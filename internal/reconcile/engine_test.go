package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// threeUnitSale is 3 units at 100 with a cost basis of 60.
func threeUnitSale(discount string) (domain.Sale, []domain.SaleItem) {
	d := dec(discount)
	sale := domain.Sale{
		ID:             "sale-1",
		Subtotal:       dec("300"),
		DiscountAmount: d,
		PriceDeducted:  decimal.Zero,
		Extra:          decimal.Zero,
	}
	sale.FinalAmount = FinalAmount(sale.Subtotal, sale.DiscountAmount, sale.PriceDeducted, sale.Extra)
	items := []domain.SaleItem{{
		ID:                   "item-1",
		SaleID:               sale.ID,
		Quantity:             3,
		SellingPricePerUnit:  dec("100"),
		PurchasePricePerUnit: dec("60"),
		DiscountPerUnit:      decimal.Zero,
		TotalPrice:           dec("300"),
	}}
	return sale, items
}

func returnOf(it *domain.SaleItem, qty int) domain.ReturnItem {
	it.ReturnedQuantity += qty
	return domain.ReturnItem{SaleItemID: it.ID, Quantity: qty, ReturnedPrice: LinePrice(*it, qty)}
}

func TestComputeWithoutReturns(t *testing.T) {
	sale, items := threeUnitSale("0")
	got := Compute(sale, items, nil)

	if got.Policy != NoReturn {
		t.Fatalf("expected no-return policy, got %s", got.Policy)
	}
	if !sale.FinalAmount.Equal(dec("300")) || !got.NetAmount.Equal(dec("300")) {
		t.Fatalf("expected final and net 300, got final=%s net=%s", sale.FinalAmount, got.NetAmount)
	}
	if !got.ReturnedAmount.IsZero() {
		t.Fatalf("expected returned 0, got %s", got.ReturnedAmount)
	}
	if !got.TotalProfit.Equal(dec("120")) {
		t.Fatalf("expected profit 120, got %s", got.TotalProfit)
	}
}

func TestComputePartialReturnWithoutSaleDiscount(t *testing.T) {
	sale, items := threeUnitSale("0")
	lines := []domain.ReturnItem{returnOf(&items[0], 1)}

	got := Compute(sale, items, lines)
	if got.Policy != HasReturn {
		t.Fatalf("expected has-return policy, got %s", got.Policy)
	}
	if !got.ReturnedAmount.Equal(dec("100")) {
		t.Fatalf("expected returned 100, got %s", got.ReturnedAmount)
	}
	if !got.NetAmount.Equal(dec("200")) {
		t.Fatalf("expected net 200, got %s", got.NetAmount)
	}
	if !got.TotalProfit.Equal(dec("80")) {
		t.Fatalf("expected profit 80 on the two kept units, got %s", got.TotalProfit)
	}
}

func TestComputeAddsBackSaleDiscountAfterReturn(t *testing.T) {
	sale, items := threeUnitSale("20")
	if !sale.FinalAmount.Equal(dec("280")) {
		t.Fatalf("expected final 280, got %s", sale.FinalAmount)
	}

	before := Compute(sale, items, nil)
	if !before.NetAmount.Equal(dec("280")) || !before.TotalProfit.Equal(dec("100")) {
		t.Fatalf("unexpected figures before return: %+v", before)
	}

	lines := []domain.ReturnItem{returnOf(&items[0], 1)}
	after := Compute(sale, items, lines)
	want := sale.FinalAmount.Sub(after.ReturnedAmount).Add(sale.DiscountAmount).Add(sale.PriceDeducted)
	if !after.NetAmount.Equal(want) || !after.NetAmount.Equal(dec("200")) {
		t.Fatalf("expected net %s, got %s", want, after.NetAmount)
	}
	if !after.TotalProfit.Equal(dec("80")) {
		t.Fatalf("sale discount must not reduce profit after a return, got %s", after.TotalProfit)
	}
}

func TestComputeFullReturnClampsAtZero(t *testing.T) {
	sale, items := threeUnitSale("20")
	lines := []domain.ReturnItem{returnOf(&items[0], 3)}

	got := Compute(sale, items, lines)
	got.Apply(&sale)
	if !sale.NetAmount.IsZero() {
		t.Fatalf("expected net clamped to 0, got %s", sale.NetAmount)
	}
	if !sale.TotalProfit.IsZero() {
		t.Fatalf("expected profit 0, got %s", sale.TotalProfit)
	}
	if !sale.IsFullyReturned() {
		t.Fatalf("expected sale to be fully returned")
	}
}

func TestHasReturnPolicyIsSaleWide(t *testing.T) {
	sale := domain.Sale{
		Subtotal:       dec("250"),
		DiscountAmount: dec("10"),
		PriceDeducted:  dec("5"),
		Extra:          dec("2"),
	}
	sale.FinalAmount = FinalAmount(sale.Subtotal, sale.DiscountAmount, sale.PriceDeducted, sale.Extra)
	items := []domain.SaleItem{
		{ID: "a", Quantity: 2, SellingPricePerUnit: dec("50"), PurchasePricePerUnit: dec("30"), DiscountPerUnit: dec("5"), TotalPrice: dec("90")},
		{ID: "b", Quantity: 3, SellingPricePerUnit: dec("50"), PurchasePricePerUnit: dec("40"), TotalPrice: dec("150")},
	}
	lines := []domain.ReturnItem{returnOf(&items[0], 1)}

	got := Compute(sale, items, lines)
	// a: 20*1 - 5*2 = 10, b: 10*3 = 30, extra 2
	if !got.TotalProfit.Equal(dec("42")) {
		t.Fatalf("expected profit 42, got %s", got.TotalProfit)
	}
	// 237 - 45 + 10 + 5
	if !got.NetAmount.Equal(dec("207")) {
		t.Fatalf("expected net 207, got %s", got.NetAmount)
	}
}

func TestProfitClampedAtZero(t *testing.T) {
	sale, items := threeUnitSale("0")
	sale.PriceDeducted = dec("200")
	sale.FinalAmount = FinalAmount(sale.Subtotal, sale.DiscountAmount, sale.PriceDeducted, sale.Extra)

	got := Compute(sale, items, nil)
	if !got.TotalProfit.IsZero() {
		t.Fatalf("expected profit clamped to 0, got %s", got.TotalProfit)
	}
	if !got.NetAmount.Equal(dec("100")) {
		t.Fatalf("expected net 100, got %s", got.NetAmount)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	sale, items := threeUnitSale("20")
	lines := []domain.ReturnItem{returnOf(&items[0], 2)}

	first := Compute(sale, items, lines)
	first.Apply(&sale)
	second := Compute(sale, items, lines)
	if !first.NetAmount.Equal(second.NetAmount) ||
		!first.TotalProfit.Equal(second.TotalProfit) ||
		!first.ReturnedAmount.Equal(second.ReturnedAmount) ||
		first.Policy != second.Policy {
		t.Fatalf("recompute changed figures: %+v vs %+v", first, second)
	}
}

func TestLinePriceUsesQuantizedUnitPrice(t *testing.T) {
	it := domain.SaleItem{Quantity: 3, TotalPrice: dec("100")}
	if got := LinePrice(it, 3); !got.Equal(dec("99.99")) {
		t.Fatalf("expected 99.99, got %s", got)
	}
}

func TestLinePriceRoundsCentTiesToEven(t *testing.T) {
	it := domain.SaleItem{ID: "item-1", Quantity: 4, TotalPrice: dec("0.10")}
	if got := LinePrice(it, 1); !got.Equal(dec("0.02")) {
		t.Fatalf("expected 0.02, got %s", got)
	}
	if got := LinePrice(it, 4); !got.Equal(dec("0.08")) {
		t.Fatalf("expected 0.08, got %s", got)
	}

	sale := domain.Sale{ID: "sale-1", Subtotal: dec("0.10"), DiscountAmount: decimal.Zero, PriceDeducted: decimal.Zero, Extra: decimal.Zero}
	sale.FinalAmount = FinalAmount(sale.Subtotal, sale.DiscountAmount, sale.PriceDeducted, sale.Extra)
	items := []domain.SaleItem{it}
	ret := returnOf(&items[0], 1)
	f := Compute(sale, items, []domain.ReturnItem{ret})
	if !f.ReturnedAmount.Equal(dec("0.02")) {
		t.Fatalf("expected returned amount 0.02, got %s", f.ReturnedAmount)
	}
	if !f.NetAmount.Equal(dec("0.08")) {
		t.Fatalf("expected net amount 0.08, got %s", f.NetAmount)
	}
}
