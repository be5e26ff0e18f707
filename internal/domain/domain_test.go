package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleMedicine() Medicine {
	return Medicine{
		Name:           "Paracetamol 500mg",
		Company:        "Kimia Farma",
		RetailersPrice: dec("80"),
		PacketPrice:    dec("100"),
		UnitsPerBox:    10,
		DiscountType:   DiscountTypePercent,
		Discount:       dec("10"),
		Stock:          20,
		ExpiryDate:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMedicinePricing(t *testing.T) {
	m := sampleMedicine()
	m.Reprice()

	if !m.Price.Equal(dec("10")) {
		t.Fatalf("expected unit price 10, got %s", m.Price)
	}
	if got := m.PurchasePerUnitPrice(); !got.Equal(dec("8")) {
		t.Fatalf("expected purchase per unit 8, got %s", got)
	}
	if got := m.CalculatedDiscount(); !got.Equal(dec("1")) {
		t.Fatalf("expected percent discount 1, got %s", got)
	}
	if got := m.SellingPrice(); !got.Equal(dec("9")) {
		t.Fatalf("expected selling price 9, got %s", got)
	}

	m.DiscountType = DiscountTypeFlat
	m.Discount = dec("2.5")
	if got := m.SellingPrice(); !got.Equal(dec("7.5")) {
		t.Fatalf("expected flat selling price 7.5, got %s", got)
	}
}

func TestUnitPriceFromPacketRounds(t *testing.T) {
	got := UnitPriceFromPacket(dec("100"), 3)
	if !got.Equal(dec("33.33")) {
		t.Fatalf("expected 33.33, got %s", got)
	}
	if got := UnitPriceFromPacket(dec("100"), 0); !got.IsZero() {
		t.Fatalf("expected zero for empty box, got %s", got)
	}
}

func TestCentTiesRoundToEven(t *testing.T) {
	cases := []struct {
		total string
		qty   int
		want  string
	}{
		{"0.10", 4, "0.02"},
		{"0.30", 4, "0.08"},
		{"2.025", 1, "2.02"},
		{"2.035", 1, "2.04"},
	}
	for _, tc := range cases {
		it := SaleItem{TotalPrice: dec(tc.total), Quantity: tc.qty}
		if got := it.UnitPrice(); !got.Equal(dec(tc.want)) {
			t.Fatalf("unit price of %s over %d: expected %s, got %s", tc.total, tc.qty, tc.want, got)
		}
		if got := UnitPriceFromPacket(dec(tc.total), tc.qty); !got.Equal(dec(tc.want)) {
			t.Fatalf("packet %s over %d: expected %s, got %s", tc.total, tc.qty, tc.want, got)
		}
	}
}

func TestMedicineExpiryFlags(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	m := sampleMedicine()

	m.ExpiryDate = now.AddDate(0, 0, 30)
	if !m.IsExpiringSoon(now) || m.IsExpired(now) {
		t.Fatalf("expected expiring soon and not expired")
	}

	m.Stock = 0
	if m.IsExpiringSoon(now) {
		t.Fatalf("out of stock medicine should not be flagged expiring")
	}

	m.Stock = 5
	m.ExpiryDate = now.AddDate(0, 0, -1)
	if !m.IsExpired(now) || m.IsExpiringSoon(now) {
		t.Fatalf("expected expired and not expiring soon")
	}

	m.ExpiryDate = now
	if m.IsExpired(now) {
		t.Fatalf("medicine expiring today is not expired yet")
	}
}

func TestMedicineValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		mutate func(m *Medicine)
		field  string
	}{
		{name: "valid", mutate: func(m *Medicine) {}},
		{name: "flat discount above packet", mutate: func(m *Medicine) {
			m.DiscountType = DiscountTypeFlat
			m.Discount = dec("150")
		}, field: "discount"},
		{name: "percent above hundred", mutate: func(m *Medicine) { m.Discount = dec("101") }, field: "discount"},
		{name: "expired", mutate: func(m *Medicine) { m.ExpiryDate = now.AddDate(0, 0, -2) }, field: "expiry_date"},
		{name: "no units", mutate: func(m *Medicine) { m.UnitsPerBox = 0 }, field: "units_per_box"},
		{name: "negative price", mutate: func(m *Medicine) { m.PacketPrice = dec("-1") }, field: "packet_price"},
		{name: "unknown discount type", mutate: func(m *Medicine) { m.DiscountType = "bogo" }, field: "discount_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := sampleMedicine()
			tc.mutate(&m)
			err := m.Validate(now)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid medicine, got %v", err)
				}
				return
			}
			if err == nil || err.Field != tc.field {
				t.Fatalf("expected error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestSaleItemDerivedValues(t *testing.T) {
	it := SaleItem{Quantity: 3, TotalPrice: dec("100"), ReturnedQuantity: 1}

	if got := it.UnitPrice(); !got.Equal(dec("33.33")) {
		t.Fatalf("expected unit price 33.33, got %s", got)
	}
	if it.NetQuantity() != 2 {
		t.Fatalf("expected net quantity 2, got %d", it.NetQuantity())
	}
	if got := it.NetPrice(); !got.Equal(dec("66.66")) {
		t.Fatalf("expected net price 66.66, got %s", got)
	}
	if got := it.ReturnedPrice(); !got.Equal(dec("33.33")) {
		t.Fatalf("expected returned price 33.33, got %s", got)
	}
	if it.IsFullyReturned() {
		t.Fatalf("item should not be fully returned")
	}
	if it.NetQuantity()+it.ReturnedQuantity != it.Quantity {
		t.Fatalf("net + returned must equal quantity")
	}
}

func TestSaleDetail(t *testing.T) {
	s := Sale{
		FinalAmount:    dec("280"),
		DiscountAmount: dec("20"),
		PriceDeducted:  dec("5"),
		ReturnedAmount: dec("280"),
		Items: []SaleItem{
			{Quantity: 2, TotalPrice: dec("200"), ReturnedQuantity: 2},
			{Quantity: 1, TotalPrice: dec("100")},
		},
	}
	d := s.Detail()
	if !d.IsFullyReturned {
		t.Fatalf("sale with returned >= final should be fully returned")
	}
	if !d.HasReturns {
		t.Fatalf("expected has returns")
	}
	if !d.TotalDiscount.Equal(dec("25")) {
		t.Fatalf("expected total discount 25, got %s", d.TotalDiscount)
	}
	if len(d.Lines) != 2 || !d.Lines[0].IsFullyReturned || d.Lines[1].IsFullyReturned {
		t.Fatalf("unexpected line views: %+v", d.Lines)
	}
}
