package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/store/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "apotek.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func testMedicine(id string, stock int) domain.Medicine {
	now := time.Now().UTC().Truncate(time.Second)
	m := domain.Medicine{
		ID:             id,
		Name:           "Ibuprofen 400mg",
		Company:        "Kalbe",
		Formula:        "Ibuprofen",
		RetailersPrice: decimal.RequireFromString("45000"),
		PacketPrice:    decimal.RequireFromString("60000"),
		UnitsPerBox:    30,
		DiscountType:   domain.DiscountTypePercent,
		Discount:       decimal.RequireFromString("5"),
		Stock:          stock,
		ExpiryDate:     time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.Reprice()
	return m
}

func TestMedicineRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := testMedicine("med-1", 12)
	if err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateMedicine(ctx, m)
	}); err != nil {
		t.Fatalf("create medicine: %v", err)
	}

	got, err := s.GetMedicine(ctx, "med-1")
	if err != nil {
		t.Fatalf("get medicine: %v", err)
	}
	if !got.Price.Equal(decimal.RequireFromString("2000")) || got.Stock != 12 {
		t.Fatalf("unexpected medicine: %+v", got)
	}
	if !got.ExpiryDate.Equal(m.ExpiryDate) {
		t.Fatalf("expiry changed: %s vs %s", got.ExpiryDate, m.ExpiryDate)
	}

	list, err := s.ListMedicines(ctx, store.MedicineFilter{Query: "ibu"})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected search hit, got %d (%v)", len(list), err)
	}

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateMedicine(ctx, m)
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}
}

func TestDecrementStockRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateMedicine(ctx, testMedicine("med-a", 10)); err != nil {
			return err
		}
		return tx.CreateMedicine(ctx, testMedicine("med-b", 1))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.DecrementStock(ctx, "med-a", 3); err != nil {
			return err
		}
		return tx.DecrementStock(ctx, "med-b", 2)
	})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.MedicineID != "med-b" || stockErr.Available != 1 {
		t.Fatalf("expected insufficient stock on med-b, got %v", err)
	}

	a, _ := s.GetMedicine(ctx, "med-a")
	if a.Stock != 10 {
		t.Fatalf("expected med-a stock unchanged at 10, got %d", a.Stock)
	}
}

func TestSaleAggregateLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	medID := "med-1"
	now := time.Now().UTC()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateMedicine(ctx, testMedicine(medID, 10)); err != nil {
			return err
		}
		sale := domain.Sale{
			ID:             "sale-1",
			SaleDate:       now,
			Subtotal:       decimal.RequireFromString("6000"),
			DiscountAmount: decimal.Zero,
			PriceDeducted:  decimal.Zero,
			Extra:          decimal.Zero,
			FinalAmount:    decimal.RequireFromString("6000"),
			NetAmount:      decimal.RequireFromString("6000"),
			TotalProfit:    decimal.RequireFromString("1500"),
			ReturnedAmount: decimal.Zero,
			SoldBy:         "cashier",
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.CreateSaleItem(ctx, domain.SaleItem{
			ID: "item-1", SaleID: "sale-1", MedicineID: &medID, MedicineName: "Ibuprofen 400mg", Quantity: 3,
			SellingPricePerUnit: decimal.RequireFromString("2000"), PurchasePricePerUnit: decimal.RequireFromString("1500"),
			DiscountPerUnit: decimal.Zero, TotalPrice: decimal.RequireFromString("6000"),
		}); err != nil {
			return err
		}
		if err := tx.CreateReturn(ctx, domain.Return{ID: "ret-1", SaleID: "sale-1", ReturnedAt: now, RefundAmount: decimal.RequireFromString("2000")}); err != nil {
			return err
		}
		return tx.CreateReturnItem(ctx, domain.ReturnItem{
			ID: "ri-1", ReturnID: "ret-1", SaleItemID: "item-1", Quantity: 1,
			ReturnedPrice: decimal.RequireFromString("2000"), Restocked: true,
		})
	})
	if err != nil {
		t.Fatalf("create sale aggregate: %v", err)
	}

	sale, err := s.GetSale(ctx, "sale-1")
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].ReturnedQuantity != 1 {
		t.Fatalf("expected returned quantity 1, got %+v", sale.Items)
	}
	if len(sale.Returns) != 1 || !sale.Returns[0].Items[0].Restocked {
		t.Fatalf("expected restocked return line, got %+v", sale.Returns)
	}

	from := now.Add(-time.Hour)
	sales, err := s.ListSales(ctx, store.SaleFilter{From: &from})
	if err != nil || len(sales) != 1 {
		t.Fatalf("expected one sale in range, got %d (%v)", len(sales), err)
	}

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteMedicine(ctx, medID)
	})
	if err != nil {
		t.Fatalf("delete medicine: %v", err)
	}
	sale, _ = s.GetSale(ctx, "sale-1")
	if sale.Items[0].MedicineID != nil {
		t.Fatalf("expected medicine reference cleared")
	}

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteSale(ctx, "sale-1")
	})
	if err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if _, err := s.GetSale(ctx, "sale-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted sale to be gone, got %v", err)
	}
}
